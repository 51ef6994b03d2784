package orchestrator

import (
	"context"
	"fmt"
	"io"

	"github.com/swan-ide/swanctl/pkg/shared/config"
	"github.com/swan-ide/swanctl/pkg/shared/errors"
	"github.com/swan-ide/swanctl/pkg/shared/validation"
)

// Help runs "<driver> -help" and streams its output to out.
func (o *Orchestrator) Help(ctx context.Context, cfg *config.Config, out io.Writer) error {
	if v := validation.ValidateToolPath(cfg.Tools.DriverPath); !v.Valid {
		return errors.New(errors.ConfigurationInvalid, string(Idle), fmt.Errorf("driver path: %s", v.Reason))
	}

	cmd := DriverCommand(cfg, []string{"-help"})
	cmd.Output = out
	res, err := o.runner.Run(ctx, cmd)
	if err != nil {
		return errors.NewStageError(string(RunningStage2), res.ExitCode, res.Stderr, err)
	}
	return nil
}
