// Package postqueue publishes social media posts through a priority queue
// drained by a pool of workers. Each job names a target, a connector
// registered for one platform account, and carries the post content.
// Transient failures are retried with exponential backoff; permanent ones
// fail the job at once.
//
// postqueue is assembled from small packages:
//   - queue: the generic priority queue and its event bus
//   - connector: platform connectors and their OAuth sessions
//   - core: the engine, poller and worker pool
//   - statistics: worker and target counters (Redis or no-op)
//   - sinks/rabbitmq: forwards queue events to an AMQP exchange
//   - metrics: Prometheus collectors fed by queue events
//
// # Example
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/BranchIntl/postqueue/connector"
//		"github.com/BranchIntl/postqueue/connector/facebook"
//		"github.com/BranchIntl/postqueue/core"
//		"github.com/BranchIntl/postqueue/registry"
//		"github.com/BranchIntl/postqueue/statistics/noop"
//	)
//
//	func main() {
//		engine := core.NewEngine(noop.NewStatistics(), registry.NewRegistry(),
//			core.WithConcurrency(4),
//		)
//
//		fb := facebook.New(connector.AuthConfig{ClientID: "my-app"}, facebook.NewSimulator(1, nil))
//		if _, err := fb.HandleAuthorizationCode(context.Background(), "code"); err != nil {
//			log.Fatal(err)
//		}
//		engine.Register("facebook:main", fb)
//
//		engine.Enqueue(core.PublishJob{
//			Target:  "facebook:main",
//			Content: connector.PostContent{Text: "hello"},
//		}, 0)
//
//		if err := engine.Run(context.Background()); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The postqueue command wires the same pieces from POSTQUEUE_* environment
// variables and serves /metrics.
package postqueue
