// Package estimator fuses visual-odometry camera poses into a gated,
// filtered NED position, velocity and attitude estimate.
//
// One Estimator owns all pipeline state and processes frames one at a time.
// Each frame runs through the quality gate, the frame converter and the
// filter stage before it reaches the publisher. Frames that fail a gate
// check move the re-init state machine to Faulting, and the next allowed
// re-init resets the odometry engine and re-learns the vision-to-NED bias.
package estimator
