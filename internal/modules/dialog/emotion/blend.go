package emotion

const (
	PreviousWeight = 0.7
	ObservedWeight = 0.3
)

// Blend folds an observed reading into the running state. Each component is
// 0.7*prev + 0.3*observed, rounded to one decimal and clamped to [0,1].
func Blend(prev, observed Vector) Vector {
	prev = prev.Normalize()
	observed = observed.Normalize()
	var out Vector
	for i := range out {
		out[i] = clamp01(round1(PreviousWeight*prev[i] + ObservedWeight*observed[i]))
	}
	return out
}
