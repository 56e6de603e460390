package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/code-payments/wallet-server/pkg/app"
)

func main() {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	if err := app.Run(newWalletApp(registry), app.WithPrometheusGatherer(registry)); err != nil {
		logrus.WithError(err).Fatal("error running walletd")
	}
}
