// Package sensor synthesizes deterministic vehicle telemetry.
//
// Generator.Generate is a pure function of the tick number and the
// generator's construction parameters, apart from the wall-clock timestamp
// stamped on each packet. Lidar, IMU and battery values follow smooth
// periodic curves so downstream consumers have plausible data to render.
package sensor
