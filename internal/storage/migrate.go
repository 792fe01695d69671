package storage

type MigrationResult struct {
	Servers  int
	Players  int
	Sessions int
	Events   int
	Config   bool
}

func (r MigrationResult) Migrated() bool {
	return r.Servers > 0 || r.Players > 0 || r.Sessions > 0 || r.Events > 0 || r.Config
}

// Migrate copies every flat collection and the config into dst and then
// removes the flat keys. Without flat keys it does nothing. On failure the
// flat keys are kept and dst is rolled back.
func Migrate(kv *KV, dst *SQLStore) (MigrationResult, error) {
	var res MigrationResult
	flat := NewFlatStore(kv)

	present := make([]string, 0, 5)
	for _, key := range []string{keyServers, keyPlayers, keySessions, keyEvents, keyConfig} {
		ok, err := kv.Has(key)
		if err != nil {
			return res, aborted("migrate", "", key, err)
		}
		if ok {
			present = append(present, key)
		}
	}
	if len(present) == 0 {
		return res, nil
	}

	servers, err := flat.servers.List()
	if err != nil {
		return res, err
	}
	players, err := flat.players.List()
	if err != nil {
		return res, err
	}
	sessions, err := flat.sessions.List()
	if err != nil {
		return res, err
	}
	events, err := flat.events.List()
	if err != nil {
		return res, err
	}
	var cfg *Settings
	if ok, _ := kv.Has(keyConfig); ok {
		if cfg, err = flat.LoadConfig(); err != nil {
			return res, err
		}
	}

	if err := dst.importFlat(servers, players, sessions, events, cfg); err != nil {
		return res, err
	}

	res = MigrationResult{
		Servers:  len(servers),
		Players:  len(players),
		Sessions: len(sessions),
		Events:   len(events),
		Config:   cfg != nil,
	}
	if err := kv.Delete(present...); err != nil {
		return res, aborted("migrate", "", "", err)
	}
	return res, nil
}
