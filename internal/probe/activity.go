package probe

import (
	"math/rand/v2"
	"sync"

	"github.com/ankityadav/craftwatch/internal/storage"
)

var DefaultUsernames = []string{"PlayerOne", "MinecraftPro", "Steve", "Alex", "Notch", "Herobrine"}

type Activity struct {
	Login    bool
	Username string
	Server   string
}

// ActivitySource decides whether a player joins or leaves after a probe cycle.
type ActivitySource interface {
	Next(servers []storage.Server) (Activity, bool)
}

type ActivitySimulator struct {
	mu  sync.Mutex
	rng *rand.Rand

	Chance    float64
	Usernames []string
}

func NewActivitySimulator(seed uint64) *ActivitySimulator {
	return &ActivitySimulator{
		rng:       rand.New(rand.NewPCG(seed, seed^0xbf58476d1ce4e5b9)),
		Chance:    0.3,
		Usernames: DefaultUsernames,
	}
}

// Next picks a random online server and username and flips a coin between
// login and logout. It reports false when nothing happens this cycle.
func (a *ActivitySimulator) Next(servers []storage.Server) (Activity, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.Usernames) == 0 || a.rng.Float64() >= a.Chance {
		return Activity{}, false
	}

	var online []storage.Server
	for _, s := range servers {
		if s.Enabled && s.Status == storage.StatusOnline {
			online = append(online, s)
		}
	}
	if len(online) == 0 {
		return Activity{}, false
	}

	server := online[a.rng.IntN(len(online))]
	return Activity{
		Login:    a.rng.IntN(2) == 0,
		Username: a.Usernames[a.rng.IntN(len(a.Usernames))],
		Server:   server.Name,
	}, true
}
