// Package minio stores small objects in an S3-compatible bucket.
//
// All keys are written below Config.Prefix. NewClient checks that the bucket
// exists and creates it when Connection.AccessBucketCreation is set.
//
//	client, err := minio.NewClient(minio.Config{
//		Connection: minio.ConnectionConfig{
//			Endpoint:        "localhost:9000",
//			AccessKeyID:     "minioadmin",
//			SecretAccessKey: "minioadmin",
//			BucketName:      "embedding-dlq",
//		},
//		Prefix: "dead-letters",
//	})
//	err = client.Put(ctx, "tenant-a/2026-10-18/abc.json", payload, nil)
package minio
