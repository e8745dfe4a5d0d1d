package cli_test

import (
	"testing"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/companion/pkg/cli"
)

func TestGetIndexConfig(t *testing.T) {
	cfg := cli.GetIndexConfig("test_")
	gt.NoError(t, cfg.Validate())

	gt.Array(t, cfg.Collections).Length(1).Required()
	col := cfg.Collections[0]
	gt.Value(t, col.Name).Equal("test_fired_triggers")

	gt.Array(t, col.Indexes).Length(1).Required()
	fields := col.Indexes[0].Fields
	gt.Array(t, fields).Length(2).Required()
	gt.Value(t, fields[0].Path).Equal("owner_id")
	gt.Value(t, fields[0].Order).Equal(fireconf.OrderAscending)
	gt.Value(t, fields[1].Path).Equal("fired_at")
	gt.Value(t, fields[1].Order).Equal(fireconf.OrderDescending)
}

func TestGetIndexConfigWithoutPrefix(t *testing.T) {
	cfg := cli.GetIndexConfig("")
	gt.Value(t, cfg.Collections[0].Name).Equal("fired_triggers")
}
