package models

// ServiceStatus is the /status report of the running service
type ServiceStatus struct {
	PID            int32   `json:"pid"`
	Uptime         string  `json:"uptime"`
	Goroutines     int     `json:"goroutines"`
	CPUPercent     float64 `json:"cpu_percent"`
	MemPercent     float32 `json:"mem_percent"`
	RSSMB          float64 `json:"rss_mb"`
	HostMemPercent float64 `json:"host_mem_percent"`
	Workspaces     int     `json:"workspaces"`
	Sessions       int     `json:"sessions"`
}
