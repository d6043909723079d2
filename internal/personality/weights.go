package personality

// MemePreferenceWeight maps a meme preference to the confidence weight the
// decision engine applies to card picks.
func MemePreferenceWeight(m MemePreference) float64 {
	switch m {
	case MemeClassic:
		return 0.8
	case MemeModern:
		return 0.9
	case MemeObscure:
		return 0.6
	case MemeAny:
		return 0.7
	}
	return 0.5
}

// VotingStyleWeight is the equivalent of MemePreferenceWeight for votes.
func VotingStyleWeight(v VotingStyle) float64 {
	switch v {
	case VoteFunniest:
		return 0.9
	case VoteStrategic:
		return 0.8
	case VoteLoyal:
		return 0.6
	case VoteRandom:
		return 0.3
	}
	return 0.5
}
