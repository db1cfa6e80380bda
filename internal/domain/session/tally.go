package session

// Tally counts votes per candidate. Every candidate is present, un-voted
// ones with zero.
func Tally(s *Session) map[int]int {
	counts := make(map[int]int, len(s.Candidates))
	for _, c := range s.Candidates {
		counts[c.ID] = 0
	}
	for _, candidateID := range s.Votes {
		if _, ok := counts[candidateID]; ok {
			counts[candidateID]++
		}
	}
	return counts
}

// Winner returns the candidate with the strictly highest count. Ties go to
// the candidate declared first. ok is false when nobody has voted.
func Winner(s *Session) (winner Candidate, votes int, ok bool) {
	counts := Tally(s)
	for _, c := range s.Candidates {
		if n := counts[c.ID]; n > votes {
			winner, votes, ok = c, n, true
		}
	}
	return winner, votes, ok
}

func TotalVoters(s *Session) int {
	return len(s.Votes)
}
