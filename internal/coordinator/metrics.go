package coordinator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes the coordinator's cached tank state. Unlike a
// scraping collector it never touches the network: Collect reads the last
// refresh snapshot.
type MetricsCollector struct {
	coordinator *Coordinator

	refreshSuccess prometheus.Gauge
	lastRefresh    prometheus.Gauge
	tankCount      prometheus.Gauge

	fuelPercent *prometheus.GaugeVec
	connected   *prometheus.GaugeVec
	info        *prometheus.GaugeVec
}

func NewMetricsCollector(c *Coordinator) *MetricsCollector {
	constLabels := prometheus.Labels{"account": c.Account()}
	tankLabels := []string{"apparatus_id", "name"}
	return &MetricsCollector{
		coordinator: c,
		refreshSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mobilelink_refresh_success",
			Help:        "Last refresh cycle success (1=ok, 0=error)",
			ConstLabels: constLabels,
		}),
		lastRefresh: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mobilelink_last_refresh_timestamp_seconds",
			Help:        "Last successful refresh timestamp (epoch seconds)",
			ConstLabels: constLabels,
		}),
		tankCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "mobilelink_tank_count",
			Help:        "Number of propane tanks in the last discovery result",
			ConstLabels: constLabels,
		}),
		fuelPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "mobilelink_tank_fuel_level_percent",
			Help:        "Propane tank fuel level (%)",
			ConstLabels: constLabels,
		}, tankLabels),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "mobilelink_tank_connected",
			Help:        "Tank monitor connectivity (1=connected, 0=disconnected, absent=unknown)",
			ConstLabels: constLabels,
		}, tankLabels),
		info: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "mobilelink_tank_info",
			Help:        "Propane tank device info",
			ConstLabels: constLabels,
		}, []string{"apparatus_id", "name", "device_id", "device_type", "battery_level", "device_status"}),
	}
}

func (m *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	m.refreshSuccess.Describe(ch)
	m.lastRefresh.Describe(ch)
	m.tankCount.Describe(ch)
	m.fuelPercent.Describe(ch)
	m.connected.Describe(ch)
	m.info.Describe(ch)
}

func (m *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	lastRefresh, lastErr := m.coordinator.LastRefresh()
	if lastErr == nil && !lastRefresh.IsZero() {
		m.refreshSuccess.Set(1)
	} else {
		m.refreshSuccess.Set(0)
	}
	if !lastRefresh.IsZero() {
		m.lastRefresh.Set(float64(lastRefresh.Unix()))
	}

	tanks := m.coordinator.Tanks()
	m.tankCount.Set(float64(len(tanks)))

	m.fuelPercent.Reset()
	m.connected.Reset()
	m.info.Reset()
	for _, tank := range tanks {
		id := strconv.FormatInt(tank.ApparatusID, 10)
		labels := prometheus.Labels{"apparatus_id": id, "name": tank.Name}
		if tank.FuelLevelPercent != nil {
			m.fuelPercent.With(labels).Set(*tank.FuelLevelPercent)
		}
		if tank.IsConnected != nil {
			value := 0.0
			if *tank.IsConnected {
				value = 1.0
			}
			m.connected.With(labels).Set(value)
		}
		m.info.With(prometheus.Labels{
			"apparatus_id":  id,
			"name":          tank.Name,
			"device_id":     tank.Device.DeviceID,
			"device_type":   tank.Device.DeviceType,
			"battery_level": tank.Device.BatteryLevel,
			"device_status": tank.Device.Status,
		}).Set(1)
	}

	m.refreshSuccess.Collect(ch)
	m.lastRefresh.Collect(ch)
	m.tankCount.Collect(ch)
	m.fuelPercent.Collect(ch)
	m.connected.Collect(ch)
	m.info.Collect(ch)
}
