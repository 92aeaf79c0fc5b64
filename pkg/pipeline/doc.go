/*
Package pipeline implements the three side effects a worker's control
loop supervises, all behind the SideEffect interface: Stream (a
supervised transcoding process), Recording (a long-lived capture process
with a completion probe), and AiTask (a plugin-driven frame consumer).

AiTask's plugin selection goes through a PluginRegistry keyed by
identifier; NewDefaultPluginRegistry wires up the two worked examples,
MockDetector and MotionDetector.
*/
package pipeline
