package npil

import "testing"

func TestCommand(t *testing.T) {
	cmd := Command{"transfer", "from.tif", "from-out=out/from", "to.tif", "points.csv"}
	if cmd.Name() != "transfer" {
		t.Errorf("bad command name: %q\n", cmd.Name())
	}
	if arg := cmd.Argument(2); arg != "to.tif" {
		t.Errorf("expected to.tif as argument 2, got %q\n", arg)
	}
	if arg := cmd.Argument(4); arg != "" {
		t.Errorf("expected no argument 4, got %q\n", arg)
	}
	if args := cmd.Arguments(); len(args) != 3 {
		t.Errorf("expected 3 positional arguments, got %v\n", args)
	}
	value, found := cmd.Parameter("from-out")
	if !found || value != "out/from" {
		t.Errorf("bad from-out parameter: %q, %t\n", value, found)
	}
	if _, found := cmd.Parameter("to-out"); found {
		t.Errorf("found to-out parameter that was not set\n")
	}
	if settings := cmd.Settings(); len(settings) != 1 || settings["from-out"] != "out/from" {
		t.Errorf("bad settings: %v\n", settings)
	}
	var empty Command
	if empty.Name() != "" || empty.Argument(1) != "" {
		t.Errorf("empty command should have no name or arguments\n")
	}
}
