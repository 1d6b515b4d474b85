package tuning

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Match        Match        `yaml:"match"`
	Convergence  Convergence  `yaml:"convergence"`
	Reduction    Reduction    `yaml:"reduction"`
	Combat       Combat       `yaml:"combat"`
	Stamina      Stamina      `yaml:"stamina"`
	Life         Life         `yaml:"life"`
	Momentum     Momentum     `yaml:"momentum"`
	Loss         Loss         `yaml:"loss"`
	Substitution Substitution `yaml:"substitution"`
	Injury       Injury       `yaml:"injury"`
	Healing      Healing      `yaml:"healing"`
	Morale       Morale       `yaml:"morale"`
	Home         Home         `yaml:"home"`
	Initiative   Initiative   `yaml:"initiative"`
}

type Match struct {
	MaxRounds         int  `yaml:"max_rounds"`
	ActiveRosterSize  int  `yaml:"active_roster_size"`
	RequireFullRoster bool `yaml:"require_full_roster"`
	RejectSameTeam    bool `yaml:"reject_same_team"`
	RoleOpenings      bool `yaml:"role_openings"`
}

type Convergence struct {
	MaxPerCharacter   int     `yaml:"max_per_character"`
	MaxPerRound       int     `yaml:"max_per_round"`
	SynergyPerExtra   float64 `yaml:"synergy_per_extra"`
	DamageScale       float64 `yaml:"damage_scale"`
	DamageDivisor     float64 `yaml:"damage_divisor"`
	OutnumberBonus    float64 `yaml:"outnumber_bonus"`
	OverflowToStamina float64 `yaml:"overflow_to_stamina"`
	MaxReductionPct   float64 `yaml:"max_reduction_pct"`
	// DamageCap bounds per-loser damage before reduction. Nil disables the cap.
	DamageCap      *int   `yaml:"damage_cap"`
	CriticalMargin int    `yaml:"critical_margin"`
	TieBreak       string `yaml:"tie_break"` // "A" or "B"
}

type Reduction struct {
	DurPerPoint float64 `yaml:"dur_per_point"`
	ResPerPoint float64 `yaml:"res_per_point"`
	CrashBonus  float64 `yaml:"crash_bonus"`
	FLBonus     float64 `yaml:"fl_bonus"`
	FLSubBonus  float64 `yaml:"fl_sub_bonus"`
}

type Combat struct {
	RollSides           int            `yaml:"roll_sides"`
	RoleBonus           map[string]int `yaml:"role_bonus"`
	MoraleStep          float64        `yaml:"morale_step"`
	BuildingDamageBonus float64        `yaml:"building_damage_bonus"`
}

type Stamina struct {
	BaseDecay           float64       `yaml:"base_decay"`
	DecayMultiplier     float64       `yaml:"decay_multiplier"`
	WilDecayPerPoint    float64       `yaml:"wil_decay_per_point"`
	RegenHP             float64       `yaml:"regen_hp"`
	RegenStamina        float64       `yaml:"regen_stamina"`
	RegenStaminaKO      float64       `yaml:"regen_stamina_ko"`
	KORecoveryThreshold float64       `yaml:"ko_recovery_threshold"`
	KORecoveryDivisor   float64       `yaml:"ko_recovery_divisor"`
	KORecoveryHPFloor   float64       `yaml:"ko_recovery_hp_floor"`
	Fatigue             []FatigueTier `yaml:"fatigue"`
	DayRecovery         float64       `yaml:"day_recovery"`
}

// FatigueTier applies Multiplier to damage taken while stamina is below Below.
type FatigueTier struct {
	Name       string  `yaml:"name"`
	Below      float64 `yaml:"below"`
	Multiplier float64 `yaml:"multiplier"`
}

type Life struct {
	Initial      float64 `yaml:"initial"`
	OverflowRate float64 `yaml:"overflow_rate"`
}

type Momentum struct {
	Min                float64 `yaml:"min"`
	Max                float64 `yaml:"max"`
	Crash              float64 `yaml:"crash"`
	Building           float64 `yaml:"building"`
	LargeDelta         float64 `yaml:"large_delta"`
	SmallDelta         float64 `yaml:"small_delta"`
	LargeShift         float64 `yaml:"large_shift"`
	SmallShift         float64 `yaml:"small_shift"`
	ProportionalFactor float64 `yaml:"proportional_factor"`
	ComebackReduction  float64 `yaml:"comeback_reduction"`
	ComebackTraitBonus float64 `yaml:"comeback_trait_bonus"`
	BuildingTraitBonus float64 `yaml:"building_trait_bonus"`
}

type Loss struct {
	KOThreshold     int     `yaml:"ko_threshold"`
	FLPlusThreshold int     `yaml:"fl_plus_threshold"`
	TeamHPPct       float64 `yaml:"team_hp_pct"`
	ActivePct       float64 `yaml:"active_pct"`
}

type Substitution struct {
	BonusShare     float64 `yaml:"bonus_share"`
	FLHPBonus      float64 `yaml:"fl_hp_bonus"`
	FLStaminaBonus float64 `yaml:"fl_stamina_bonus"`
}

type Injury struct {
	KOChance       float64        `yaml:"ko_chance"`
	LowHPChance    float64        `yaml:"low_hp_chance"`
	LowHPThreshold float64        `yaml:"low_hp_threshold"`
	DurPerPoint    float64        `yaml:"dur_per_point"`
	ResPerPoint    float64        `yaml:"res_per_point"`
	SbyPerPoint    float64        `yaml:"sby_per_point"`
	Durations      map[string]int `yaml:"durations"`
}

type Healing struct {
	// DayAttempt lets every injured character with banked stamina try one healing roll at day end.
	DayAttempt  bool               `yaml:"day_attempt"`
	Chance      map[string]float64 `yaml:"chance"`
	CostBase    float64            `yaml:"cost_base"`
	CostFactor  map[string]float64 `yaml:"cost_factor"`
	ResModifier float64            `yaml:"res_modifier"`
	MinChance   float64            `yaml:"min_chance"`
	MaxChance   float64            `yaml:"max_chance"`
}

type Morale struct {
	Initial         float64 `yaml:"initial"`
	Win             float64 `yaml:"win"`
	Loss            float64 `yaml:"loss"`
	AllyFLKO        float64 `yaml:"ally_fl_ko"`
	LeaderSynergy   float64 `yaml:"leader_synergy"`
	CollapseEnabled bool    `yaml:"collapse_enabled"`
	CollapseBelow   float64 `yaml:"collapse_below"`
}

type Home struct {
	Enabled bool    `yaml:"enabled"`
	Factor  float64 `yaml:"factor"`
}

type Initiative struct {
	Weighted       bool    `yaml:"weighted"`
	FLMultiplier   float64 `yaml:"fl_multiplier"`
	BuildingFactor float64 `yaml:"building_factor"`
	CrashFactor    float64 `yaml:"crash_factor"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Match: Match{
			MaxRounds:         20,
			ActiveRosterSize:  8,
			RequireFullRoster: true,
			RejectSameTeam:    true,
		},
		Convergence: Convergence{
			MaxPerCharacter:   3,
			MaxPerRound:       30,
			SynergyPerExtra:   0.15,
			DamageScale:       3,
			DamageDivisor:     10,
			OutnumberBonus:    0.2,
			OverflowToStamina: 0.30,
			MaxReductionPct:   75,
			CriticalMargin:    60,
			TieBreak:          "A",
		},
		Reduction: Reduction{
			DurPerPoint: 3,
			ResPerPoint: 2,
			CrashBonus:  10,
			FLBonus:     25,
			FLSubBonus:  12,
		},
		Combat: Combat{
			RollSides:           100,
			RoleBonus:           map[string]int{"FL": 10, "VG": 5, "SV": 15},
			MoraleStep:          0.05,
			BuildingDamageBonus: 0.10,
		},
		Stamina: Stamina{
			BaseDecay:           4,
			DecayMultiplier:     1.08,
			WilDecayPerPoint:    0.03,
			RegenHP:             3,
			RegenStamina:        5,
			RegenStaminaKO:      10,
			KORecoveryThreshold: 30,
			KORecoveryDivisor:   200,
			KORecoveryHPFloor:   20,
			Fatigue: []FatigueTier{
				{Name: "severe", Below: 15, Multiplier: 1.20},
				{Name: "moderate", Below: 35, Multiplier: 1.10},
				{Name: "minor", Below: 60, Multiplier: 1.05},
			},
			DayRecovery: 15,
		},
		Life: Life{
			Initial:      100,
			OverflowRate: 0.5,
		},
		Momentum: Momentum{
			Min:                -5,
			Max:                5,
			Crash:              -3,
			Building:           3,
			LargeDelta:         0.30,
			SmallDelta:         0.10,
			LargeShift:         1.0,
			SmallShift:         0.5,
			ProportionalFactor: 2.0,
			ComebackReduction:  10,
			ComebackTraitBonus: 15,
			BuildingTraitBonus: 5,
		},
		Loss: Loss{
			KOThreshold:     3,
			FLPlusThreshold: 2,
			TeamHPPct:       25,
			ActivePct:       35,
		},
		Substitution: Substitution{
			BonusShare:     0.5,
			FLHPBonus:      0.25,
			FLStaminaBonus: 0.20,
		},
		Injury: Injury{
			KOChance:       0.30,
			LowHPChance:    0.15,
			LowHPThreshold: 20,
			DurPerPoint:    0.05,
			ResPerPoint:    0.04,
			SbyPerPoint:    0.06,
			Durations:      map[string]int{"MINOR": 1, "MODERATE": 2, "MAJOR": 3, "SEVERE": 5},
		},
		Healing: Healing{
			Chance:      map[string]float64{"MINOR": 0.8, "MODERATE": 0.6, "MAJOR": 0.4, "SEVERE": 0.2},
			CostBase:    15,
			CostFactor:  map[string]float64{"MINOR": 1, "MODERATE": 1.5, "MAJOR": 2, "SEVERE": 3},
			ResModifier: 0.10,
			MinChance:   0.05,
			MaxChance:   0.95,
		},
		Morale: Morale{
			Initial:       5,
			Win:           1,
			Loss:          -1,
			AllyFLKO:      -2,
			LeaderSynergy: 0.1,
			CollapseBelow: 2,
		},
		Home: Home{
			Enabled: true,
			Factor:  0.10,
		},
		Initiative: Initiative{
			FLMultiplier:   1.5,
			BuildingFactor: 1.2,
			CrashFactor:    0.8,
		},
	}
}

// Load reads a tuning file on top of Defaults. Keys absent from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Match.MaxRounds <= 0 {
		return fmt.Errorf("match.max_rounds must be > 0")
	}
	if t.Match.ActiveRosterSize <= 0 {
		return fmt.Errorf("match.active_roster_size must be > 0")
	}
	if t.Convergence.MaxPerCharacter <= 0 {
		return fmt.Errorf("convergence.max_per_character must be > 0")
	}
	if t.Convergence.DamageDivisor <= 0 {
		return fmt.Errorf("convergence.damage_divisor must be > 0")
	}
	if t.Convergence.MaxReductionPct < 0 || t.Convergence.MaxReductionPct > 100 {
		return fmt.Errorf("convergence.max_reduction_pct out of range: %v", t.Convergence.MaxReductionPct)
	}
	if t.Convergence.DamageCap != nil && *t.Convergence.DamageCap < 1 {
		return fmt.Errorf("convergence.damage_cap must be >= 1 when set")
	}
	switch t.Convergence.TieBreak {
	case "A", "B":
	default:
		return fmt.Errorf("convergence.tie_break must be A or B, got %q", t.Convergence.TieBreak)
	}
	if t.Combat.RollSides <= 0 {
		return fmt.Errorf("combat.roll_sides must be > 0")
	}
	if t.Life.Initial <= 0 {
		return fmt.Errorf("life.initial must be > 0")
	}
	if t.Stamina.KORecoveryDivisor <= 0 {
		return fmt.Errorf("stamina.ko_recovery_divisor must be > 0")
	}
	if t.Momentum.Min >= t.Momentum.Max {
		return fmt.Errorf("momentum.min must be < momentum.max")
	}
	if t.Momentum.Crash >= t.Momentum.Building {
		return fmt.Errorf("momentum.crash must be < momentum.building")
	}
	if t.Loss.KOThreshold <= 0 {
		return fmt.Errorf("loss.ko_threshold must be > 0")
	}
	for _, sev := range []string{"MINOR", "MODERATE", "MAJOR", "SEVERE"} {
		if t.Injury.Durations[sev] <= 0 {
			return fmt.Errorf("injury.durations.%s must be > 0", sev)
		}
	}
	return nil
}

// FatigueFor returns the damage-taken multiplier and tier name for a stamina value.
// The tightest matching tier wins.
func (s Stamina) FatigueFor(stamina float64) (float64, string) {
	best := -1
	for i, tier := range s.Fatigue {
		if stamina < tier.Below && (best < 0 || tier.Below < s.Fatigue[best].Below) {
			best = i
		}
	}
	if best < 0 {
		return 1.0, ""
	}
	return s.Fatigue[best].Multiplier, s.Fatigue[best].Name
}
