package layout

import (
	"errors"
	"math"
	"math/rand/v2"

	"github.com/detective/core/internal/models"
)

var ErrUnknownParticle = errors.New("unknown particle")

// ForceConfig parameterizes the simulation. Zero values are not defaults;
// start from DefaultForceConfig.
type ForceConfig struct {
	LinkDistance  float64
	Charge        float64
	CollideRadius float64
	Center        Point
	VelocityDecay float64
	AlphaMin      float64
	AlphaDecay    float64
	DragAlpha     float64
	Seed          uint64
}

func DefaultForceConfig(canvas Canvas) ForceConfig {
	alphaMin := 0.001
	return ForceConfig{
		LinkDistance:  100,
		Charge:        -300,
		CollideRadius: 30,
		Center:        canvas.Center(),
		VelocityDecay: 0.4,
		AlphaMin:      alphaMin,
		AlphaDecay:    1 - math.Pow(alphaMin, 1.0/300),
		DragAlpha:     0.3,
		Seed:          1,
	}
}

// Particle is the mutable physics record of one node. It lives only inside
// the simulation.
type Particle struct {
	ID     string
	X, Y   float64
	VX, VY float64
	Fixed  bool
	FX, FY float64
}

type Link struct {
	Source   int
	Target   int
	Strength float64
	Bias     float64
	Width    float64
}

// Simulation is a time-stepped force layout over an index-addressable
// particle array. It does no scheduling: callers invoke Step.
type Simulation struct {
	cfg         ForceConfig
	particles   []Particle
	links       []Link
	index       map[string]int
	alpha       float64
	alphaTarget float64
	ticks       int
	rnd         *rand.Rand
}

// NewSimulation seeds particles on a phyllotaxis spiral around the center and
// links every parent-child pair present in nodes.
func NewSimulation(nodes []*models.TreeNode, cfg ForceConfig) *Simulation {
	s := &Simulation{
		cfg:       cfg,
		particles: make([]Particle, len(nodes)),
		index:     make(map[string]int, len(nodes)),
		alpha:     1,
		rnd:       rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}

	angleStep := math.Pi * (3 - math.Sqrt(5))
	for i, n := range nodes {
		radius := 10 * math.Sqrt(0.5+float64(i))
		angle := float64(i) * angleStep
		s.particles[i] = Particle{
			ID: n.ID,
			X:  cfg.Center.X + radius*math.Cos(angle),
			Y:  cfg.Center.Y + radius*math.Sin(angle),
		}
		s.index[n.ID] = i
	}

	degree := make([]int, len(nodes))
	for _, n := range nodes {
		for _, child := range n.Children {
			si, ok1 := s.index[n.ID]
			ti, ok2 := s.index[child.ID]
			if !ok1 || !ok2 {
				continue
			}
			s.links = append(s.links, Link{Source: si, Target: ti, Width: LinkWidth(child.Value)})
			degree[si]++
			degree[ti]++
		}
	}
	for i := range s.links {
		l := &s.links[i]
		ds, dt := float64(degree[l.Source]), float64(degree[l.Target])
		l.Strength = 1 / math.Min(ds, dt)
		l.Bias = ds / (ds + dt)
	}

	return s
}

func (s *Simulation) Alpha() float64 { return s.alpha }

func (s *Simulation) Ticks() int { return s.ticks }

// Converged reports whether the simulation has cooled below AlphaMin.
func (s *Simulation) Converged() bool {
	return s.alpha < s.cfg.AlphaMin
}

func (s *Simulation) Links() []Link {
	out := make([]Link, len(s.links))
	copy(out, s.links)
	return out
}

func (s *Simulation) Particle(id string) (Particle, bool) {
	i, ok := s.index[id]
	if !ok {
		return Particle{}, false
	}
	return s.particles[i], true
}

func (s *Simulation) Positions() map[string]Point {
	out := make(map[string]Point, len(s.particles))
	for _, p := range s.particles {
		out[p.ID] = Point{X: p.X, Y: p.Y}
	}
	return out
}

// Step advances the simulation by one tick.
func (s *Simulation) Step() {
	s.alpha += (s.alphaTarget - s.alpha) * s.cfg.AlphaDecay
	s.ticks++

	s.applyLinks()
	s.applyCharge()
	s.applyCenter()
	s.applyCollide()

	keep := 1 - s.cfg.VelocityDecay
	for i := range s.particles {
		p := &s.particles[i]
		if p.Fixed {
			p.X, p.VX = p.FX, 0
			p.Y, p.VY = p.FY, 0
			continue
		}
		p.VX *= keep
		p.VY *= keep
		p.X += p.VX
		p.Y += p.VY
	}
}

// Run steps until converged or max ticks, whichever comes first.
func (s *Simulation) Run(max int) {
	for i := 0; i < max && !s.Converged(); i++ {
		s.Step()
	}
}

// Pin fixes a particle at (x, y) and warms the simulation so the rest of the
// graph relaxes around it.
func (s *Simulation) Pin(id string, x, y float64) error {
	i, ok := s.index[id]
	if !ok {
		return ErrUnknownParticle
	}
	p := &s.particles[i]
	p.Fixed, p.FX, p.FY = true, x, y
	s.alphaTarget = s.cfg.DragAlpha
	if s.alpha < s.cfg.DragAlpha {
		s.alpha = s.cfg.DragAlpha
	}
	return nil
}

// Unpin releases a pinned particle and lets the simulation cool again.
func (s *Simulation) Unpin(id string) error {
	i, ok := s.index[id]
	if !ok {
		return ErrUnknownParticle
	}
	s.particles[i].Fixed = false
	for _, p := range s.particles {
		if p.Fixed {
			return nil
		}
	}
	s.alphaTarget = 0
	return nil
}

func (s *Simulation) jiggle() float64 {
	return (s.rnd.Float64() - 0.5) * 1e-6
}

func (s *Simulation) applyLinks() {
	for _, l := range s.links {
		src, tgt := &s.particles[l.Source], &s.particles[l.Target]
		x := tgt.X + tgt.VX - src.X - src.VX
		y := tgt.Y + tgt.VY - src.Y - src.VY
		if x == 0 {
			x = s.jiggle()
		}
		if y == 0 {
			y = s.jiggle()
		}
		d := math.Sqrt(x*x + y*y)
		k := (d - s.cfg.LinkDistance) / d * s.alpha * l.Strength
		x *= k
		y *= k
		tgt.VX -= x * l.Bias
		tgt.VY -= y * l.Bias
		src.VX += x * (1 - l.Bias)
		src.VY += y * (1 - l.Bias)
	}
}

func (s *Simulation) applyCharge() {
	for i := range s.particles {
		p := &s.particles[i]
		for j := range s.particles {
			if i == j {
				continue
			}
			q := &s.particles[j]
			x, y := q.X-p.X, q.Y-p.Y
			if x == 0 {
				x = s.jiggle()
			}
			if y == 0 {
				y = s.jiggle()
			}
			l := x*x + y*y
			if l < 1 {
				l = math.Sqrt(l)
			}
			w := s.cfg.Charge * s.alpha / l
			p.VX += x * w
			p.VY += y * w
		}
	}
}

func (s *Simulation) applyCenter() {
	n := float64(len(s.particles))
	if n == 0 {
		return
	}
	var sx, sy float64
	for _, p := range s.particles {
		sx += p.X
		sy += p.Y
	}
	dx, dy := sx/n-s.cfg.Center.X, sy/n-s.cfg.Center.Y
	for i := range s.particles {
		s.particles[i].X -= dx
		s.particles[i].Y -= dy
	}
}

func (s *Simulation) applyCollide() {
	r := 2 * s.cfg.CollideRadius
	for i := range s.particles {
		p := &s.particles[i]
		for j := i + 1; j < len(s.particles); j++ {
			q := &s.particles[j]
			x := (p.X + p.VX) - (q.X + q.VX)
			y := (p.Y + p.VY) - (q.Y + q.VY)
			l := x*x + y*y
			if l >= r*r {
				continue
			}
			if x == 0 {
				x = s.jiggle()
				l += x * x
			}
			if y == 0 {
				y = s.jiggle()
				l += y * y
			}
			d := math.Sqrt(l)
			k := (r - d) / d
			x *= k * 0.5
			y *= k * 0.5
			p.VX += x
			p.VY += y
			q.VX -= x
			q.VY -= y
		}
	}
}
