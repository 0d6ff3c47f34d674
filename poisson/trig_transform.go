package poisson

import (
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
)

// TransformKind names a real-to-real trigonometric transform, following the
// REDFT/RODFT conventions of FFTW. All transforms are unnormalized: a kind
// followed by its Inverse scales the input by 2n.
type TransformKind int

const (
	REDFT10 TransformKind = iota // DCT-II
	REDFT01                      // DCT-III
	REDFT11                      // DCT-IV
	RODFT10                      // DST-II
	RODFT01                      // DST-III
	RODFT11                      // DST-IV
)

func (k TransformKind) String() string {
	switch k {
	case REDFT10:
		return "REDFT10"
	case REDFT01:
		return "REDFT01"
	case REDFT11:
		return "REDFT11"
	case RODFT10:
		return "RODFT10"
	case RODFT01:
		return "RODFT01"
	case RODFT11:
		return "RODFT11"
	}
	return fmt.Sprintf("TransformKind(%d)", int(k))
}

// Inverse returns the kind that undoes k up to a factor of 2n
func (k TransformKind) Inverse() TransformKind {
	switch k {
	case REDFT10:
		return REDFT01
	case REDFT01:
		return REDFT10
	case RODFT10:
		return RODFT01
	case RODFT01:
		return RODFT10
	}
	return k
}

// TrigTransform computes one kind of transform for sequences of length n by
// embedding the sequence in a symmetric or antisymmetric complex sequence
// and taking its FFT. A TrigTransform is not safe for concurrent use.
type TrigTransform struct {
	kind TransformKind
	n    int
	fft  *fourier.CmplxFFT
	work []complex128
}

// NewTrigTransform returns a transform of kind for length n
func NewTrigTransform(kind TransformKind, n int) *TrigTransform {
	if n < 1 {
		panic(fmt.Sprintf("invalid transform length %d", n))
	}
	m := 4 * n
	if kind == REDFT11 || kind == RODFT11 {
		m = 8 * n
	}
	return &TrigTransform{
		kind: kind,
		n:    n,
		fft:  fourier.NewCmplxFFT(m),
		work: make([]complex128, m),
	}
}

// Kind returns the transform kind
func (t *TrigTransform) Kind() TransformKind { return t.kind }

// Len returns the sequence length
func (t *TrigTransform) Len() int { return t.n }

// Transform applies the transform to src, placing the result in dst and
// returning it. dst may alias src. If dst is nil a new slice is allocated.
func (t *TrigTransform) Transform(dst, src []float64) []float64 {
	n := t.n
	if len(src) != n {
		panic(fmt.Sprintf("transform length %d, sequence length %d", n, len(src)))
	}
	if dst == nil {
		dst = make([]float64, n)
	}
	y := t.work
	for i := range y {
		y[i] = 0
	}
	m := len(y)

	switch t.kind {
	case REDFT10, REDFT11:
		for j, x := range src {
			y[2*j+1] = complex(x, 0)
			y[m-2*j-1] = complex(x, 0)
		}
	case RODFT10, RODFT11:
		for j, x := range src {
			y[2*j+1] = complex(x, 0)
			y[m-2*j-1] = complex(-x, 0)
		}
	case REDFT01:
		y[0] = complex(src[0], 0)
		for j := 1; j < n; j++ {
			y[j] = complex(src[j], 0)
			y[m-j] = complex(src[j], 0)
		}
	case RODFT01:
		for k := 1; k <= n; k++ {
			x := src[k-1]
			if k == n {
				x *= 0.5
			}
			y[k] = complex(x, 0)
			y[m-k] = complex(-x, 0)
		}
	}

	coeff := t.fft.Coefficients(y, y)

	for k := 0; k < n; k++ {
		switch t.kind {
		case REDFT10:
			dst[k] = real(coeff[k])
		case RODFT10:
			dst[k] = -imag(coeff[k+1])
		case REDFT01, REDFT11:
			dst[k] = real(coeff[2*k+1])
		case RODFT01, RODFT11:
			dst[k] = -imag(coeff[2*k+1])
		}
	}
	return dst
}

// transformAxis applies t along axis of a dense array with lengths ns, first
// axis fastest. line is scratch of length ns[axis].
func transformAxis(t *TrigTransform, data []float64, ns []int, axis int, line []float64) {
	stride := 1
	for i := 0; i < axis; i++ {
		stride *= ns[i]
	}
	n := ns[axis]
	block := stride * n
	for base := 0; base < len(data); base += block {
		for off := 0; off < stride; off++ {
			start := base + off
			for i := 0; i < n; i++ {
				line[i] = data[start+i*stride]
			}
			t.Transform(line, line)
			for i := 0; i < n; i++ {
				data[start+i*stride] = line[i]
			}
		}
	}
}
