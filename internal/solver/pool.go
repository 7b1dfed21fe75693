package solver

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// workspace holds every scratch vector one Rosenbrock step needs.
type workspace struct {
	n int

	f0, f1, f2 []float64
	k1, k2, k3 []float64
	dfdt       []float64
	ynew       []float64
	rhs        []float64
	errv       []float64
	scratch    []float64
	fy         []float64
	jac        []float64

	w    *mat.Dense
	lu   mat.LU
	rhsV *mat.VecDense
	k1V  *mat.VecDense
	k2V  *mat.VecDense
	k3V  *mat.VecDense
}

func newWorkspace(n int) *workspace {
	ws := &workspace{
		n:       n,
		f0:      make([]float64, n),
		f1:      make([]float64, n),
		f2:      make([]float64, n),
		k1:      make([]float64, n),
		k2:      make([]float64, n),
		k3:      make([]float64, n),
		dfdt:    make([]float64, n),
		ynew:    make([]float64, n),
		rhs:     make([]float64, n),
		errv:    make([]float64, n),
		scratch: make([]float64, n),
		fy:      make([]float64, n),
		jac:     make([]float64, n*n),
		w:       mat.NewDense(n, n, nil),
	}
	ws.rhsV = mat.NewVecDense(n, ws.rhs)
	ws.k1V = mat.NewVecDense(n, ws.k1)
	ws.k2V = mat.NewVecDense(n, ws.k2)
	ws.k3V = mat.NewVecDense(n, ws.k3)
	return ws
}

// workspacePool recycles workspaces between sessions of the same size so a
// batch of thousands of samples does not allocate per sample.
type workspacePool struct {
	mu    sync.Mutex
	pools map[int]*sync.Pool
}

func newWorkspacePool() *workspacePool {
	return &workspacePool{pools: make(map[int]*sync.Pool)}
}

func (p *workspacePool) forSize(n int) *sync.Pool {
	p.mu.Lock()
	defer p.mu.Unlock()
	pool, ok := p.pools[n]
	if !ok {
		pool = &sync.Pool{
			New: func() interface{} {
				return newWorkspace(n)
			},
		}
		p.pools[n] = pool
	}
	return pool
}

func (p *workspacePool) Get(n int) *workspace {
	return p.forSize(n).Get().(*workspace)
}

func (p *workspacePool) Put(ws *workspace) {
	if ws == nil {
		return
	}
	p.forSize(ws.n).Put(ws)
}
