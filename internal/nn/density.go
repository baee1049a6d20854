package nn

import "fmt"

// ErdosRenyiDensities distributes an overall weight density over the layers of
// a network with the given sizes (input size followed by every layer's output
// size). A layer with r outputs and c inputs receives a density proportional
// to (r + c) / (r * c), so small layers are kept denser than large ones.
// Layers whose density would exceed 1 are made dense and the remaining budget
// is redistributed until every density fits. The total number of weights
// equals overall * (total number of weights) up to rounding.
func ErdosRenyiDensities(overall float64, sizes []int) ([]float64, error) {
	if overall <= 0 || overall > 1 {
		return nil, fmt.Errorf("overall density %g outside (0, 1]", overall)
	}
	if len(sizes) < 2 {
		return nil, fmt.Errorf("%w: need at least two sizes, got %v", ErrShapeMismatch, sizes)
	}
	n := len(sizes) - 1
	type shape struct{ rows, cols float64 }
	shapes := make([]shape, n)
	for i := range shapes {
		shapes[i] = shape{rows: float64(sizes[i+1]), cols: float64(sizes[i])}
	}

	dense := make([]bool, n)
	raw := make([]float64, n)
	var epsilon float64
	for {
		var divisor, rhs float64
		for i, s := range shapes {
			params := s.rows * s.cols
			if dense[i] {
				rhs -= params * (1 - overall)
				raw[i] = 0
				continue
			}
			rhs += params * overall
			raw[i] = (s.rows + s.cols) / params
			divisor += raw[i] * params
		}
		if divisor == 0 {
			break
		}
		epsilon = rhs / divisor

		maxProb := 0.0
		for _, p := range raw {
			maxProb = max(maxProb, p)
		}
		if maxProb*epsilon <= 1 {
			break
		}
		for i, p := range raw {
			if p == maxProb {
				dense[i] = true
			}
		}
	}

	densities := make([]float64, n)
	for i := range densities {
		if dense[i] {
			densities[i] = 1
		} else {
			densities[i] = epsilon * raw[i]
		}
	}
	return densities, nil
}
