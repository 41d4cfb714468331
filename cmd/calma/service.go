package main

import (
	"fmt"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/calmahq/calma/internal/core"
)

// program adapts the module lifecycle to the service manager interface.
type program struct {
	configPath string
	app        *core.App
}

// Start implements service.Interface. It must not block.
func (p *program) Start(_ service.Service) error {
	cfgPath := p.configPath
	if cfgPath == "" {
		resolved, err := resolveConfigPath()
		if err != nil {
			return err
		}
		cfgPath = resolved
	}

	app, _, err := loadApp(cfgPath)
	if err != nil {
		return err
	}
	p.app = app

	return app.Start()
}

// Stop implements service.Interface.
func (p *program) Stop(_ service.Service) error {
	if p.app != nil {
		p.app.Stop()
	}
	return nil
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "service <install|uninstall|start|stop|restart|status|run>",
		Short:     "Manage calma as a system service",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"install", "uninstall", "start", "stop", "restart", "status", "run"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			svcConfig := &service.Config{
				Name:        "calma",
				DisplayName: "Calma",
				Description: "Self-hosted therapeutic chat companion",
				Arguments:   []string{"service", "run"},
			}
			if cfgPath != "" {
				svcConfig.Arguments = append(svcConfig.Arguments, "--config", cfgPath)
			}

			svc, err := service.New(&program{configPath: cfgPath}, svcConfig)
			if err != nil {
				return err
			}

			switch args[0] {
			case "run":
				// Invoked by the service manager, not by users.
				return svc.Run()
			case "status":
				status, err := svc.Status()
				if err != nil {
					return err
				}
				switch status {
				case service.StatusRunning:
					fmt.Println("calma is running")
				case service.StatusStopped:
					fmt.Println("calma is stopped")
				default:
					fmt.Println("calma status is unknown")
				}
				return nil
			default:
				if err := service.Control(svc, args[0]); err != nil {
					return err
				}
				fmt.Printf("Service %s: OK\n", args[0])
				return nil
			}
		},
	}
	cmd.Flags().StringP("config", "c", "", "Path to configuration file used by the service")
	return cmd
}
