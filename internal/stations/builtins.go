package stations

import (
	"log/slog"

	"github.com/rendis/conveyor/internal/healing"
	"github.com/rendis/conveyor/internal/station"
)

// RegisterBuiltins registers the full built-in station set: scaffold,
// validate, commit, and the self-healing build, test, and launch stations.
// A nil runner gets the default shell runner; a nil renderer gets the
// starter templates.
func RegisterBuiltins(reg *station.Registry, runner healing.CommandRunner, renderer Renderer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = healing.NewExecRunner()
	}
	if renderer == nil {
		renderer = StarterRenderer{}
	}

	validate, err := NewValidate()
	if err != nil {
		return err
	}

	specialists := healing.DefaultSpecialists(runner, logger)
	classifier := healing.NewClassifier()
	buildLoop := healing.NewLoop(runner, classifier, healing.BuildGuardrails(), specialists, logger)
	defaultLoop := healing.NewLoop(runner, classifier, healing.DefaultGuardrails(), specialists, logger)

	all := []station.Station{
		NewScaffold(renderer),
		validate,
		NewCommit(runner),
		NewBuild(buildLoop),
		NewTest(defaultLoop),
		NewLaunch(defaultLoop),
	}
	for _, s := range all {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}
