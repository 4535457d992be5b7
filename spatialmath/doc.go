// Package spatialmath defines the geometric variables used by the slam factors: points, rotations,
// poses, calibrations and cameras. Every variable type satisfies nonlinear.Value.
package spatialmath
