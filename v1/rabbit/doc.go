// Package rabbit publishes messages to a RabbitMQ exchange.
//
// The client opens one confirm-mode channel, declares a durable exchange and
// waits for the broker's ack on every Publish, so a nil error means the
// message was accepted. A background loop started by RetryConnection
// replaces the connection and channel when the broker drops them.
//
// Basic usage:
//
//	client, err := rabbit.NewClient(rabbit.Config{
//		Connection: rabbit.Connection{Host: "localhost", User: "guest", Password: "guest"},
//		Exchange:   rabbit.Exchange{Name: "alerts", RoutingKey: "failure-alerts"},
//	})
//	if err != nil {
//		return err
//	}
//	defer client.GracefulShutdown()
//	go client.RetryConnection()
//
//	err = client.Publish(ctx, "", payload, map[string]string{"alertType": "EMBEDDING_PROCESSING_FAILURE"})
//
// With fx, include rabbit.FXModule and provide a rabbit.Config.
package rabbit
