package analyses

import "time"

// Analysis is the persisted result of one successful worker run.
type Analysis struct {
	ID                int64     `json:"id"`
	FacialFeatures    []string  `json:"facialFeatures"`
	FacialThirds      []string  `json:"facialThirds"`
	SkinConditions    []string  `json:"skinConditions"`
	Recommendations   []string  `json:"recommendations"`
	ColorPalette      []string  `json:"colorPalette"`
	AnalyzedImagePath *string   `json:"analyzedImagePath"`
	CreatedAt         time.Time `json:"createdAt"`
}

// InsertAnalysis is the input to Store.CreateAnalysis.
type InsertAnalysis struct {
	FacialFeatures    []string `json:"facialFeatures"`
	FacialThirds      []string `json:"facialThirds"`
	SkinConditions    []string `json:"skinConditions"`
	Recommendations   []string `json:"recommendations"`
	ColorPalette      []string `json:"colorPalette"`
	AnalyzedImagePath *string  `json:"analyzedImagePath"`
}

// normalized returns a copy with nil sequences replaced by empty ones and slices detached
// from the caller.
func (in InsertAnalysis) normalized() InsertAnalysis {
	out := InsertAnalysis{
		FacialFeatures:  cloneStrings(in.FacialFeatures),
		FacialThirds:    cloneStrings(in.FacialThirds),
		SkinConditions:  cloneStrings(in.SkinConditions),
		Recommendations: cloneStrings(in.Recommendations),
		ColorPalette:    cloneStrings(in.ColorPalette),
	}
	if in.AnalyzedImagePath != nil {
		p := *in.AnalyzedImagePath
		out.AnalyzedImagePath = &p
	}
	return out
}

func (a Analysis) clone() Analysis {
	in := InsertAnalysis{
		FacialFeatures:    a.FacialFeatures,
		FacialThirds:      a.FacialThirds,
		SkinConditions:    a.SkinConditions,
		Recommendations:   a.Recommendations,
		ColorPalette:      a.ColorPalette,
		AnalyzedImagePath: a.AnalyzedImagePath,
	}.normalized()
	return newAnalysis(a.ID, in, a.CreatedAt)
}

func newAnalysis(id int64, in InsertAnalysis, createdAt time.Time) Analysis {
	return Analysis{
		ID:                id,
		FacialFeatures:    in.FacialFeatures,
		FacialThirds:      in.FacialThirds,
		SkinConditions:    in.SkinConditions,
		Recommendations:   in.Recommendations,
		ColorPalette:      in.ColorPalette,
		AnalyzedImagePath: in.AnalyzedImagePath,
		CreatedAt:         createdAt,
	}
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
