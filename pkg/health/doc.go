/*
Package health provides pluggable liveness checks — HTTP, TCP, and exec.
In this module the gateway binary uses the HTTP checker to probe each
configured worker's /health endpoint and report the result into its own
health output; request routing does not depend on it.

A Checker reports a Result; Status accumulates consecutive successes and
failures against a Config's Retries threshold before flipping Healthy, so a
single flaky probe doesn't flap a resource's reported health.
*/
package health
