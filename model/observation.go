package model

// Observation is the player's economy as the game mod reports it.
type Observation struct {
	Race        string     `json:"race"`
	Time        float64    `json:"time"`
	Minerals    float64    `json:"minerals"`
	Vespene     float64    `json:"vespene"`
	Units       []Unit     `json:"units"`
	Bases       []Base     `json:"bases"`
	Upgrades    []string   `json:"upgrades"`
	Researching []Research `json:"researching"`
	Chrono      []Caster   `json:"chrono"`
}

// Unit is one owned unit or structure. Progress is 1 for completed units
// and the build fraction for ones still under construction.
type Unit struct {
	ID       int     `json:"id"`
	Type     string  `json:"type"`
	Addon    string  `json:"addon,omitempty"`
	Progress float64 `json:"progress"`

	// Order is what a completed producer is currently making, if anything.
	Order         string  `json:"order,omitempty"`
	OrderProgress float64 `json:"orderProgress,omitempty"`
}

func (u Unit) TypeName() string { return u.Type }

// Completed reports whether the unit exists, as opposed to being built.
func (u Unit) Completed() bool { return u.Progress >= 1 }

// Base is what remains to mine at one town hall.
type Base struct {
	Minerals float64    `json:"minerals"`
	Vespene  [2]float64 `json:"vespene"`
}

// Research is an upgrade in progress at a producer.
type Research struct {
	Name     string  `json:"name"`
	Producer string  `json:"producer"`
	Progress float64 `json:"progress"`
}

// Caster is a structure able to cast chrono boost.
type Caster struct {
	Energy float64 `json:"energy"`
}
