package qmake

// ShouldRegenerate is the regeneration gate: an explicit request, the global
// always-run setting, or a Makefile that does not provably match.
func ShouldRegenerate(forced, alwaysRun bool, cmp MakefileComparison) bool {
	return forced || alwaysRun || cmp != MakefileMatches
}

// StalenessDecider applies ShouldRegenerate to a step and consumes its
// one-shot forced flag.
type StalenessDecider struct {
	AlwaysRun bool
}

func (d StalenessDecider) Decide(s *Step, cmp MakefileComparison) bool {
	s.mu.Lock()
	forced := s.forced
	s.forced = false
	s.mu.Unlock()

	if forced {
		s.notify(ForcedChanged)
	}
	return ShouldRegenerate(forced, d.AlwaysRun, cmp)
}
