package rules

// DefaultGoals returns a small per-race progression: open, then build the
// first tech army, expanding once the game is a few minutes old.
func DefaultGoals() []*Goal {
	return []*Goal{
		{
			Name:         "terran-expand",
			Priority:     30,
			ConditionSrc: `Race() == "terran" && Time() >= 180 && Bases() < 2`,
			Target:       map[string]int{"CommandCenter": 2, "SCV": 22},
		},
		{
			Name:         "terran-bio",
			Priority:     20,
			ConditionSrc: `Race() == "terran" && HasUnit("Barracks")`,
			Target:       map[string]int{"Marine": 8, "Marauder": 2, "Stimpack": 1},
		},
		{
			Name:         "terran-opening",
			Priority:     10,
			ConditionSrc: `Race() == "terran"`,
			Target:       map[string]int{"Marine": 2, "SCV": 16},
		},
		{
			Name:         "protoss-expand",
			Priority:     30,
			ConditionSrc: `Race() == "protoss" && Time() >= 180 && Bases() < 2`,
			Target:       map[string]int{"Nexus": 2, "Probe": 22},
		},
		{
			Name:         "protoss-warpgate",
			Priority:     20,
			ConditionSrc: `Race() == "protoss" && HasUnit("CyberneticsCore")`,
			Target:       map[string]int{"WarpGateResearch": 1, "Stalker": 4},
		},
		{
			Name:         "protoss-opening",
			Priority:     10,
			ConditionSrc: `Race() == "protoss"`,
			Target:       map[string]int{"Zealot": 1, "Probe": 16, "CyberneticsCore": 1},
		},
		{
			Name:         "zerg-expand",
			Priority:     30,
			ConditionSrc: `Race() == "zerg" && Time() >= 120 && Bases() < 2`,
			Target:       map[string]int{"Hatchery": 2, "Drone": 20},
		},
		{
			Name:         "zerg-roach",
			Priority:     20,
			ConditionSrc: `Race() == "zerg" && HasUnit("SpawningPool")`,
			Target:       map[string]int{"Roach": 6, "Queen": 1},
		},
		{
			Name:         "zerg-opening",
			Priority:     10,
			ConditionSrc: `Race() == "zerg"`,
			Target:       map[string]int{"Zergling": 6, "Drone": 16},
		},
	}
}
