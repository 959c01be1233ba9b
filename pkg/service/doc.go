// Package service is the explicit bootstrap step: it assembles the catalog,
// secret box, layout, admission gate, sandbox provisioner, supervisor,
// ingestor, facade and background tasks into one runnable Service.
package service
