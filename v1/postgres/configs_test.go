package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionDSN(t *testing.T) {
	c := Connection{Host: "db", User: "u", Password: "p", DbName: "vectors"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=vectors sslmode=disable", c.DSN())

	c.Port = "6543"
	c.SSLMode = "require"
	assert.Equal(t, "host=db port=6543 user=u password=p dbname=vectors sslmode=require", c.DSN())
}
