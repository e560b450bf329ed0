// Package postgres provides a gorm connection to PostgreSQL (pgx driver) with
// pool settings, a periodic health check and automatic reconnection.
//
//	pg, err := postgres.NewPostgres(postgres.Config{
//		Connection: postgres.Connection{
//			Host: "localhost", Port: "5432", User: "app", Password: "secret", DbName: "vectors",
//		},
//	})
//	if err != nil {
//		return err
//	}
//	defer pg.Close()
//
//	pg.DB().WithContext(ctx).Create(&row)
//
// Always call DB() per operation rather than caching the handle: the monitor
// loop replaces it after a reconnect.
package postgres
