package dnauth

import "log/slog"

// FitnessWarningThreshold triggers the warning callback.
const FitnessWarningThreshold = 0.3

// calculateFitness applies the lineage's selection pressure to the current
// generation's fitness. Caller holds the mutex.
func (s *Service) calculateFitness(lineage *Lineage) float64 {
	current := lineage.Current
	if current == nil {
		return 0
	}
	fitness := current.Fitness

	switch lineage.Pressure {
	case PressureUsage:
		if lineage.TotalAuths > 0 {
			bonus := float64(current.AuthCount) / 100.0
			if bonus > 0.2 {
				bonus = 0.2
			}
			fitness += bonus
		}
	case PressureTime:
		now := s.now()
		if now.After(lineage.NextEvolution) {
			overdue := now.Sub(lineage.NextEvolution)
			periods := int(overdue / lineage.EvolutionInterval)
			fitness -= float64(periods) * FitnessDecay
		}
	case PressureAdaptive:
		fitness -= float64(current.FailedCount) * 0.02
	}

	if fitness < 0 {
		fitness = 0
	}
	if fitness > 1 {
		fitness = 1
	}
	return fitness
}

// updateFitnessLocked recomputes and stores the current fitness, raising
// the warning callback when it drops below the threshold. Caller holds the
// mutex.
func (s *Service) updateFitnessLocked(lineage *Lineage) {
	fitness := s.calculateFitness(lineage)
	if lineage.Current != nil {
		lineage.Current.Fitness = fitness
	}
	lineage.CumulativeFitness = fitness

	if fitness < FitnessWarningThreshold {
		slog.Warn("credential fitness low", "user", lineage.UserID, "fitness", fitness)
		if s.opts.OnFitnessWarning != nil {
			s.opts.OnFitnessWarning(lineage.UserID, fitness)
		}
	}
}

// Fitness returns the current fitness for a user's lineage, recomputed
// under the lineage's pressure.
func (s *Service) Fitness(userID string) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lineage, ok := s.lineages[userID]
	if !ok {
		return 0, false
	}
	return s.calculateFitness(lineage), true
}
