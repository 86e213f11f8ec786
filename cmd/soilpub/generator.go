package main

import (
	"math"
	"math/rand/v2"

	"github.com/nerrad567/soilwatch/internal/reading"
)

// malformedPayloads cycle through each decode failure the daemon classifies.
var malformedPayloads = [][]byte{
	[]byte(`{"soil_moisture": 41.2, "temperature":`),
	[]byte(`{"soil_moisture": 41.2, "temperature": 22.1, "humidity": 58}`),
	[]byte(`{"soil_moisture": "wet", "temperature": 22.1, "humidity": 58, "rainfall": 0}`),
}

// generator produces a plausible random walk of sensor readings.
type generator struct {
	rng       *rand.Rand
	current   reading.SensorReading
	malformed int
	seq       int
	bad       int
}

func newGenerator(seed uint64, malformedEvery int) *generator {
	return &generator{
		rng:       rand.New(rand.NewPCG(seed, seed^0x5eed)),
		current:   reading.SensorReading{SoilMoisture: 40, Temperature: 20, Humidity: 55},
		malformed: malformedEvery,
	}
}

// next returns the payload for the next message.
func (g *generator) next() ([]byte, error) {
	g.seq++
	if g.malformed > 0 && g.seq%g.malformed == 0 {
		p := malformedPayloads[g.bad%len(malformedPayloads)]
		g.bad++
		return p, nil
	}

	r := g.current
	r.SoilMoisture = clamp(r.SoilMoisture+g.rng.NormFloat64(), 0, 100)
	r.Temperature = clamp(r.Temperature+g.rng.NormFloat64()*0.3, -10, 45)
	r.Humidity = clamp(r.Humidity+g.rng.NormFloat64(), 0, 100)
	r.Rainfall = 0
	if g.rng.Float64() < 0.1 {
		r.Rainfall = round(g.rng.Float64()*5, 1)
		r.SoilMoisture = clamp(r.SoilMoisture+r.Rainfall, 0, 100)
	}
	r.SoilMoisture = round(r.SoilMoisture, 1)
	r.Temperature = round(r.Temperature, 1)
	r.Humidity = round(r.Humidity, 1)
	g.current = r

	return reading.Encode(r)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
