package workout

import "github.com/joescharf/lift/internal/models"

// nextPending finds the set to present after acting on cur: the next pending
// set of the same exercise, then the first pending set of any later
// exercise, then wrapping to earlier exercises. ok is false when nothing is
// pending.
func nextPending(exercises []models.ExerciseSession, cur models.Cursor) (models.Cursor, bool) {
	if cur.Exercise >= 0 && cur.Exercise < len(exercises) {
		sets := exercises[cur.Exercise].Sets
		for j := cur.Set + 1; j < len(sets); j++ {
			if sets[j].Status == models.SetStatusPending {
				return models.Cursor{Exercise: cur.Exercise, Set: j}, true
			}
		}
	}
	n := len(exercises)
	for k := 1; k <= n; k++ {
		i := (cur.Exercise + k) % n
		if i < 0 {
			i += n
		}
		if j, ok := firstPending(exercises[i]); ok {
			return models.Cursor{Exercise: i, Set: j}, true
		}
	}
	return cur, false
}

func firstPending(ex models.ExerciseSession) (int, bool) {
	for j, set := range ex.Sets {
		if set.Status == models.SetStatusPending {
			return j, true
		}
	}
	return 0, false
}
