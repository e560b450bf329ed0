// Package redis wraps go-redis with the operations the embedding cache needs:
// plain and JSON get/set with TTL, multi-key delete and pattern delete via SCAN.
//
//	client, err := redis.NewClient(redis.Config{Host: "localhost"})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	err = client.SetJSON(ctx, "embcache:t1:model:abc", entry, time.Hour)
//	err = client.GetJSON(ctx, "embcache:t1:model:abc", &entry)
//	if redis.IsNilError(err) {
//		// miss
//	}
//
// Every command reports to an optional observability.Observer.
package redis
