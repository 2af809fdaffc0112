package ports

import "time"

// Clock es el oráculo de tiempo del engine. Deadlines y grace periods
// se evalúan perezosamente contra Now() en el momento de cada llamada;
// no hay timers ni scheduling en ningún sitio.
type Clock interface {
	Now() time.Time
}

// SystemClock usa el reloj del sistema.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
