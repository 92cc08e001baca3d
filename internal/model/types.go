package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Rule rewrites a single non-terminal into its successor string.
type Rule struct {
	Predecessor byte   `json:"predecessor"`
	Successor   string `json:"successor"`
}

// Genotype is the heritable part of an organism.
type Genotype struct {
	Axiom    string `json:"axiom"`
	Seed     int64  `json:"seed"`
	Rules    []Rule `json:"rules"`
	Sentence string `json:"sentence"`
}

// Clone returns a copy that shares no rule storage with g.
func (g Genotype) Clone() Genotype {
	out := g
	out.Rules = CloneRules(g.Rules)
	return out
}

func CloneRules(rules []Rule) []Rule {
	if rules == nil {
		return nil
	}
	return append([]Rule(nil), rules...)
}

type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Organism operations recorded in lineage.
const (
	OpSeed              = "seed"
	OpElite             = "elite"
	OpEliteReplacement  = "elite_replacement"
	OpNearTarget        = "near_target"
	OpCrossover         = "crossover"
	OpCrossoverMutation = "crossover+mutation"
	OpMutation          = "mutation"
	OpFallback          = "fallback"
	OpReplacement       = "replacement"
)

type Organism struct {
	ID         string   `json:"id"`
	ParentIDs  []string `json:"parent_ids,omitempty"`
	Operation  string   `json:"operation"`
	Genotype   Genotype `json:"genotype"`
	Phenotype  []Coord  `json:"phenotype"`
	Angle      *float64 `json:"angle,omitempty"`
	Distance   float64  `json:"distance"`
	Rank       int      `json:"rank"`
	Fitness    float64  `json:"fitness"`
	Generation int      `json:"generation"`
	Index      int      `json:"index"`
}

// Evaluated reports whether the organism already carries a cached angle.
func (o Organism) Evaluated() bool {
	return o.Angle != nil
}

// Clone returns a deep copy so a carried-over organism never aliases its
// predecessor.
func (o Organism) Clone() Organism {
	out := o
	out.Genotype = o.Genotype.Clone()
	out.ParentIDs = append([]string(nil), o.ParentIDs...)
	out.Phenotype = append([]Coord(nil), o.Phenotype...)
	if o.Angle != nil {
		angle := *o.Angle
		out.Angle = &angle
	}
	return out
}

type RunConfig struct {
	Population   int     `json:"population"`
	Generations  int     `json:"generations"`
	Seed         int64   `json:"seed"`
	Axiom        string  `json:"axiom"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	TargetAngle  float64 `json:"target_angle"`
	Elitism      float64 `json:"elitism"`
	Replacement  float64 `json:"replacement"`
	Iterations   int     `json:"iterations"`
	RepeatFactor int     `json:"repeat_factor"`
	Evaluator    string  `json:"evaluator"`
}

type RunRecord struct {
	VersionedRecord
	ID           string    `json:"id"`
	Config       RunConfig `json:"config"`
	CreatedAtUTC time.Time `json:"created_at_utc"`
	Generations  int       `json:"generations_completed"`
	Best         *Organism `json:"best,omitempty"`
}

type PopulationRecord struct {
	VersionedRecord
	RunID      string     `json:"run_id"`
	Generation int        `json:"generation"`
	Organisms  []Organism `json:"organisms"`
}

type GenerationDiagnostics struct {
	Generation      int     `json:"generation"`
	BestDistance    float64 `json:"best_distance"`
	BestAngle       float64 `json:"best_angle"`
	MeanAngle       float64 `json:"mean_angle"`
	MeanDistance    float64 `json:"mean_distance"`
	UniqueSentences int     `json:"unique_sentences"`
	Uniqueness      float64 `json:"uniqueness"`
	Evaluations     int     `json:"evaluations"`
}

type LineageRecord struct {
	OrganismID string   `json:"organism_id"`
	ParentIDs  []string `json:"parent_ids,omitempty"`
	Generation int      `json:"generation"`
	Operation  string   `json:"operation"`
	Sentence   string   `json:"sentence"`
}
