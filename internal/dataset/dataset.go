package dataset

import (
	"volant/internal/model"
	"volant/internal/symmetry"
)

// Sample is one fixed-length flight trajectory: Channels[t][c] holds sensor
// channel c at timestep t, Label indexes the dataset's class list.
type Sample struct {
	Channels [][]float64 `json:"channels"`
	Label    int         `json:"label"`
}

// Dataset is an immutable labeled collection. VelocityStart is the channel
// index of the vx component; (vx, vy, vz) occupy three consecutive channels
// so the equivariant variants can treat them as a vector channel.
type Dataset struct {
	Samples       []Sample `json:"samples"`
	Classes       []string `json:"classes"`
	ChannelCount  int      `json:"channel_count"`
	VelocityStart int      `json:"velocity_start"`
}

// Split is the frozen train/validation/test partition shared read-only by
// every candidate during a run.
type Split struct {
	Train      Dataset `json:"train"`
	Validation Dataset `json:"validation"`
	Test       Dataset `json:"test"`
}

func (d Dataset) Validate() error {
	if len(d.Classes) < 2 {
		return model.Configf("dataset needs at least 2 classes, got %d", len(d.Classes))
	}
	if d.ChannelCount < 1 {
		return model.Configf("dataset channel count must be >= 1, got %d", d.ChannelCount)
	}
	if d.VelocityStart < 0 || d.VelocityStart+3 > d.ChannelCount {
		return model.Configf("velocity channels [%d, %d) out of range for %d channels", d.VelocityStart, d.VelocityStart+3, d.ChannelCount)
	}
	for i, sample := range d.Samples {
		if len(sample.Channels) == 0 {
			return model.Configf("sample %d has empty trajectory", i)
		}
		for t, row := range sample.Channels {
			if len(row) != d.ChannelCount {
				return model.Configf("sample %d row %d has %d channels, dataset has %d", i, t, len(row), d.ChannelCount)
			}
		}
		if sample.Label < 0 || sample.Label >= len(d.Classes) {
			return model.Configf("sample %d label %d out of range for %d classes", i, sample.Label, len(d.Classes))
		}
	}
	return nil
}

func (s Split) Validate() error {
	for _, part := range []struct {
		name string
		data Dataset
	}{{"train", s.Train}, {"validation", s.Validation}, {"test", s.Test}} {
		if len(part.data.Samples) == 0 {
			return model.Configf("%s partition is empty", part.name)
		}
		if err := part.data.Validate(); err != nil {
			return err
		}
		if part.data.ChannelCount != s.Train.ChannelCount {
			return model.Configf("%s partition channel count %d differs from train %d", part.name, part.data.ChannelCount, s.Train.ChannelCount)
		}
		if len(part.data.Classes) != len(s.Train.Classes) {
			return model.Configf("%s partition class set differs from train", part.name)
		}
	}
	return nil
}

// InputLayout is the representation the dataset's channels carry under the
// given group: all channels scalar for the plain variant, the velocity
// components grouped into one vector channel otherwise.
func (d Dataset) InputLayout(g symmetry.Group) (symmetry.Layout, error) {
	switch g {
	case symmetry.None:
		return symmetry.NewLayout(g, d.ChannelCount, 0)
	case symmetry.SE2:
		return symmetry.NewLayout(g, d.ChannelCount-2, 1)
	case symmetry.SE3:
		return symmetry.NewLayout(g, d.ChannelCount-3, 1)
	default:
		return symmetry.Layout{}, model.Configf("unsupported group %s", g)
	}
}

// Encode reorders one sample's channels to the scalars-first convention of
// the given group: under SE(2) only (vx, vy) form the vector channel and vz
// stays scalar; under SE(3) the full velocity triple moves to the end.
func (d Dataset) Encode(sample Sample, g symmetry.Group) ([][]float64, error) {
	perm, err := d.channelOrder(g)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(sample.Channels))
	for t, row := range sample.Channels {
		if len(row) != d.ChannelCount {
			return nil, model.Configf("row %d has %d channels, dataset has %d", t, len(row), d.ChannelCount)
		}
		next := make([]float64, len(perm))
		for i, c := range perm {
			next[i] = row[c]
		}
		out[t] = next
	}
	return out, nil
}

func (d Dataset) channelOrder(g symmetry.Group) ([]int, error) {
	perm := make([]int, 0, d.ChannelCount)
	switch g {
	case symmetry.None:
		for c := 0; c < d.ChannelCount; c++ {
			perm = append(perm, c)
		}
	case symmetry.SE2:
		for c := 0; c < d.ChannelCount; c++ {
			if c == d.VelocityStart || c == d.VelocityStart+1 {
				continue
			}
			perm = append(perm, c)
		}
		perm = append(perm, d.VelocityStart, d.VelocityStart+1)
	case symmetry.SE3:
		for c := 0; c < d.ChannelCount; c++ {
			if c >= d.VelocityStart && c < d.VelocityStart+3 {
				continue
			}
			perm = append(perm, c)
		}
		perm = append(perm, d.VelocityStart, d.VelocityStart+1, d.VelocityStart+2)
	default:
		return nil, model.Configf("unsupported group %s", g)
	}
	return perm, nil
}
