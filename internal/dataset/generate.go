package dataset

import (
	"math"
	"math/rand"

	"volant/internal/model"
)

// ManeuverClasses is the fixed label set of the synthetic trajectory
// supplier, ordered easiest-to-separate first so a prefix is still a
// meaningful task.
var ManeuverClasses = []string{
	"level_flight",
	"coordinated_turn",
	"climb",
	"descent",
	"chandelle",
}

// Channel order of generated trajectories. The velocity triple starts at
// channel 2.
const (
	chanAirspeed = iota
	chanAltitude
	chanVX
	chanVY
	chanVZ
	channelCount
)

const velocityStart = chanVX

type GenerateConfig struct {
	Train      int
	Validation int
	Test       int
	SeqLen     int
	Classes    int // prefix of ManeuverClasses; 0 means all
	Seed       int64
	Noise      float64
}

// GenerateSplit produces a frozen train/validation/test partition of
// synthetic maneuvers. Each trajectory gets a uniformly random initial
// heading, so absolute direction carries no class information and the
// rotation-equivariant variants compete on equal footing. Deterministic
// under a fixed seed.
func GenerateSplit(cfg GenerateConfig) (Split, error) {
	if cfg.Train < 1 || cfg.Validation < 1 || cfg.Test < 1 {
		return Split{}, model.Configf("every partition needs at least one sample: train=%d validation=%d test=%d", cfg.Train, cfg.Validation, cfg.Test)
	}
	if cfg.SeqLen < 2 {
		return Split{}, model.Configf("sequence length must be >= 2, got %d", cfg.SeqLen)
	}
	classes := cfg.Classes
	if classes == 0 {
		classes = len(ManeuverClasses)
	}
	if classes < 2 || classes > len(ManeuverClasses) {
		return Split{}, model.Configf("class count must be in [2, %d], got %d", len(ManeuverClasses), classes)
	}
	noise := cfg.Noise
	if noise < 0 {
		return Split{}, model.Configf("noise must be >= 0, got %f", noise)
	}
	if noise == 0 {
		noise = 0.05
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	names := append([]string(nil), ManeuverClasses[:classes]...)
	build := func(count int) Dataset {
		samples := make([]Sample, 0, count)
		for i := 0; i < count; i++ {
			label := i % classes
			samples = append(samples, Sample{
				Channels: generateTrajectory(rng, label, cfg.SeqLen, noise),
				Label:    label,
			})
		}
		return Dataset{
			Samples:       samples,
			Classes:       names,
			ChannelCount:  channelCount,
			VelocityStart: velocityStart,
		}
	}

	split := Split{
		Train:      build(cfg.Train),
		Validation: build(cfg.Validation),
		Test:       build(cfg.Test),
	}
	return split, split.Validate()
}

func generateTrajectory(rng *rand.Rand, label, seqLen int, noise float64) [][]float64 {
	heading := rng.Float64() * 2 * math.Pi
	speed := 0.5 + 0.5*rng.Float64()
	altitude := 0.8 + 0.4*rng.Float64()

	turnRate := 0.0
	climbRate := 0.0
	switch ManeuverClasses[label] {
	case "coordinated_turn":
		turnRate = signOf(rng) * (0.10 + 0.10*rng.Float64())
	case "climb":
		climbRate = 0.2 + 0.2*rng.Float64()
	case "descent":
		climbRate = -(0.2 + 0.2*rng.Float64())
	case "chandelle":
		turnRate = signOf(rng) * (0.10 + 0.10*rng.Float64())
		climbRate = 0.2 + 0.2*rng.Float64()
	}

	const dt = 0.05
	rows := make([][]float64, seqLen)
	for t := 0; t < seqLen; t++ {
		vx := speed * math.Cos(heading)
		vy := speed * math.Sin(heading)
		vz := climbRate
		airspeed := math.Sqrt(vx*vx + vy*vy + vz*vz)

		row := make([]float64, channelCount)
		row[chanAirspeed] = airspeed + noise*rng.NormFloat64()
		row[chanAltitude] = altitude + noise*rng.NormFloat64()
		row[chanVX] = vx + noise*rng.NormFloat64()
		row[chanVY] = vy + noise*rng.NormFloat64()
		row[chanVZ] = vz + noise*rng.NormFloat64()
		rows[t] = row

		heading += turnRate
		altitude += vz * dt
	}
	return rows
}

func signOf(rng *rand.Rand) float64 {
	if rng.Intn(2) == 0 {
		return -1
	}
	return 1
}
