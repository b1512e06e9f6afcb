// Package geometry holds the rigid-body algebra shared by the pose estimator
// and the occupancy map updater.
//
// Axes: vision/camera frame is x right, y down, z forward. The NED navigation
// frame maps as N = z, E = x, D = y; ToNED and FromNED are the only crossings.
//
// Euler convention: R = Ry(yaw) * Rx(pitch) * Rz(roll) on vision axes, which is
// aerospace Z-Y-X (yaw, pitch, roll) once remapped to NED. RotationFromEuler and
// Rotation.Euler are exact inverses away from pitch = +/-90 degrees; bias
// learning and attitude extraction must both go through them.
package geometry
