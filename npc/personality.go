package npc

import (
	"math/rand"

	"github.com/valpatel/tritium-sc/engine-core/model"
)

// personalityRange is the sampling band for one trait: mean +/- spread,
// clamped to [0,1].
type personalityRange struct {
	mean, spread float64
}

func (r personalityRange) sample() float64 {
	return clamp01(r.mean + (rand.Float64()*2-1)*r.spread)
}

// trait profiles per asset type. Hostiles skew aggressive, animals skew
// skittish, civilians sit in the middle with wide variance.
var personalityProfiles = map[string]struct {
	curiosity, caution, sociability, aggression personalityRange
}{
	model.AssetPerson: {
		curiosity:   personalityRange{0.5, 0.3},
		caution:     personalityRange{0.5, 0.3},
		sociability: personalityRange{0.6, 0.3},
		aggression:  personalityRange{0.25, 0.2},
	},
	model.AssetHostilePerson: {
		curiosity:   personalityRange{0.3, 0.2},
		caution:     personalityRange{0.3, 0.2},
		sociability: personalityRange{0.4, 0.2},
		aggression:  personalityRange{0.8, 0.15},
	},
	model.AssetHostileLeader: {
		curiosity:   personalityRange{0.4, 0.2},
		caution:     personalityRange{0.5, 0.2},
		sociability: personalityRange{0.6, 0.2},
		aggression:  personalityRange{0.9, 0.1},
	},
	model.AssetHostileVehicle: {
		curiosity:   personalityRange{0.2, 0.1},
		caution:     personalityRange{0.3, 0.2},
		sociability: personalityRange{0.2, 0.1},
		aggression:  personalityRange{0.75, 0.15},
	},
	model.AssetVehicle: {
		curiosity:   personalityRange{0.3, 0.2},
		caution:     personalityRange{0.6, 0.2},
		sociability: personalityRange{0.3, 0.2},
		aggression:  personalityRange{0.1, 0.1},
	},
	model.AssetAnimal: {
		curiosity:   personalityRange{0.6, 0.3},
		caution:     personalityRange{0.8, 0.2},
		sociability: personalityRange{0.4, 0.3},
		aggression:  personalityRange{0.1, 0.1},
	},
}

// SamplePersonality draws a trait vector for an asset type. Unknown
// types get the civilian profile.
func SamplePersonality(assetType string) model.Personality {
	profile, ok := personalityProfiles[assetType]
	if !ok {
		profile = personalityProfiles[model.AssetPerson]
	}
	return model.Personality{
		Curiosity:   profile.curiosity.sample(),
		Caution:     profile.caution.sample(),
		Sociability: profile.sociability.sample(),
		Aggression:  profile.aggression.sample(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
