package sale

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultNumberPrefix prefijo del consecutivo de venta.
const DefaultNumberPrefix = "VTA"

// NumberGenerator genera números de venta PREFIJO-AAAAMMDD-HHMMSSmmmuuu (UTC).
// Dentro del proceso la marca de tiempo es estrictamente creciente, aunque el reloj
// se repita o retroceda; entre procesos la unicidad la garantiza el índice único de la BD.
type NumberGenerator struct {
	prefix string

	mu   sync.Mutex
	last time.Time
}

// NewNumberGenerator construye el generador; prefijo vacío usa DefaultNumberPrefix.
func NewNumberGenerator(prefix string) *NumberGenerator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultNumberPrefix
	}
	return &NumberGenerator{prefix: prefix}
}

// Next devuelve el siguiente número para el instante now.
func (g *NumberGenerator) Next(now time.Time) string {
	g.mu.Lock()
	t := now.UTC().Truncate(time.Microsecond)
	if !t.After(g.last) {
		t = g.last.Add(time.Microsecond)
	}
	g.last = t
	g.mu.Unlock()

	return fmt.Sprintf("%s-%s-%s%06d", g.prefix, t.Format("20060102"), t.Format("150405"), t.Nanosecond()/int(time.Microsecond))
}
