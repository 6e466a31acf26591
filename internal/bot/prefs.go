package bot

import "sync"

// VoicePref holds a user's voice reply settings.
type VoicePref struct {
	Enabled bool
	Engine  string
}

// VoicePrefs tracks per-user voice reply preferences in memory. Defaults
// apply until the user flips them with a command.
type VoicePrefs struct {
	mu             sync.RWMutex
	prefs          map[int64]VoicePref
	defaultEnabled bool
	defaultEngine  string
}

func NewVoicePrefs(defaultEnabled bool, defaultEngine string) *VoicePrefs {
	return &VoicePrefs{
		prefs:          make(map[int64]VoicePref),
		defaultEnabled: defaultEnabled,
		defaultEngine:  defaultEngine,
	}
}

func (p *VoicePrefs) Get(userID int64) VoicePref {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if pref, ok := p.prefs[userID]; ok {
		return pref
	}
	return VoicePref{Enabled: p.defaultEnabled, Engine: p.defaultEngine}
}

func (p *VoicePrefs) SetEnabled(userID int64, enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pref, ok := p.prefs[userID]
	if !ok {
		pref = VoicePref{Enabled: p.defaultEnabled, Engine: p.defaultEngine}
	}
	pref.Enabled = enabled
	p.prefs[userID] = pref
}

func (p *VoicePrefs) SetEngine(userID int64, engine string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pref, ok := p.prefs[userID]
	if !ok {
		pref = VoicePref{Enabled: p.defaultEnabled, Engine: p.defaultEngine}
	}
	pref.Engine = engine
	p.prefs[userID] = pref
}
