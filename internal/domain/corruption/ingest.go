package corruption

// IngestChance is the probability that an uploaded file is stored corrupted.
const IngestChance = 0.3

// Assignment is the corruption state given to a new file.
type Assignment struct {
	Corrupted bool
	Level     int
}

// Assign draws the corruption state of a new upload: corrupted with
// IngestChance, and if so a level drawn uniformly from 1..3.
func Assign(rng RandomSource) Assignment {
	if rng.Float64() >= IngestChance {
		return Assignment{}
	}
	return Assignment{Corrupted: true, Level: rng.IntN(3) + 1}
}
