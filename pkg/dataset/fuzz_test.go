package dataset

import "testing"

func FuzzParse(f *testing.F) {
	f.Add([]byte("timestamp,anomaly_score\n2026-01-01,0.5\n"), true)
	f.Add([]byte("\ufeffa,anomaly_score\nx,NaN\n"), false)
	f.Add([]byte("a,b\n1\n"), false)
	f.Add([]byte{}, false)

	f.Fuzz(func(t *testing.T, data []byte, require bool) {
		table, err := Parse(data, Options{RequireScores: require})
		if err != nil {
			return
		}
		if table.HasScores() && len(table.Scores) != table.Rows {
			t.Errorf("%d scores for %d rows", len(table.Scores), table.Rows)
		}
		if require && !table.HasScores() {
			t.Error("scores required but table has none")
		}
	})
}
