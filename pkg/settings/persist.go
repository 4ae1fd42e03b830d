package settings

// Persister routes settings saves between the per-account profile store and
// local device storage. The routing decision is evaluated on every save, not
// cached: an authenticated session with profilesettings enabled saves
// remotely, everything else saves locally.
type Persister struct {
	// Local writes a value into device storage.
	Local func(key, value string) error
	// Remote posts the settings blob to the per-account store. May be nil
	// for sessions without an API collaborator.
	Remote func(blob []byte) error
	// Authenticated reports whether the session has a signed-in user.
	Authenticated func() bool
}

// Save persists the record via the currently applicable destination.
func (p *Persister) Save(s *Settings) error {
	blob, err := s.Marshal()
	if err != nil {
		return err
	}
	if p.Authenticated != nil && p.Authenticated() && s.ProfileSettings && p.Remote != nil {
		return p.Remote(blob)
	}
	if p.Local == nil {
		return nil
	}
	return p.Local(StorageKey, string(blob))
}
