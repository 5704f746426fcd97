package usecase

import "github.com/gptlisting/backend/internal/domain"

// workingSet owns the "not yet assigned" rows of a batch. Every stage
// claims URLs through it, so an image can never be double-claimed by two
// stages and leftovers are always well defined.
type workingSet struct {
	rows    map[string]domain.FeatureRow
	order   []string
	claimed map[string]bool
}

func newWorkingSet(rows []domain.FeatureRow) *workingSet {
	ws := &workingSet{
		rows:    make(map[string]domain.FeatureRow, len(rows)),
		order:   make([]string, 0, len(rows)),
		claimed: make(map[string]bool, len(rows)),
	}
	for _, row := range rows {
		ws.rows[row.URL] = row
		ws.order = append(ws.order, row.URL)
	}
	return ws
}

// claim marks a URL as consumed. Returns false if the URL is unknown or
// already claimed; callers treat false as a defect.
func (w *workingSet) claim(url string) bool {
	if _, ok := w.rows[url]; !ok {
		return false
	}
	if w.claimed[url] {
		return false
	}
	w.claimed[url] = true
	return true
}

func (w *workingSet) isFree(url string) bool {
	_, ok := w.rows[url]
	return ok && !w.claimed[url]
}

func (w *workingSet) row(url string) (domain.FeatureRow, bool) {
	row, ok := w.rows[url]
	return row, ok
}

// remaining returns unclaimed rows in input order
func (w *workingSet) remaining() []domain.FeatureRow {
	var out []domain.FeatureRow
	for _, url := range w.order {
		if !w.claimed[url] {
			out = append(out, w.rows[url])
		}
	}
	return out
}
