package services

import (
	"math"
	"sort"

	"uscview/models"
	"uscview/utils"
)

// Locator resolves a node id to a location
type Locator interface {
	Lookup(nodeID string) utils.GeoLocation
}

// TopologyService derives JSON views of the channels in a topology response
type TopologyService struct {
	geo Locator
}

func NewTopologyService(geo Locator) *TopologyService {
	return &TopologyService{geo: geo}
}

func (ts *TopologyService) locate(nodeID string) utils.GeoLocation {
	if ts.geo == nil {
		return utils.GeoLocation{Country: utils.Unknown, City: utils.Unknown}
	}
	return ts.geo.Lookup(nodeID)
}

// Summaries flattens every channel of resp in traversal order
func (ts *TopologyService) Summaries(resp *models.TopologyResponse) []models.ChannelSummary {
	summaries := make([]models.ChannelSummary, 0)
	if resp == nil || resp.Output == nil {
		return summaries
	}

	for ti := range resp.Output.Topology {
		topo := &resp.Output.Topology[ti]
		for ci := range topo.Channel {
			ch := &topo.Channel[ci]

			summary := models.ChannelSummary{
				TopologyID:  topo.TopologyID,
				ChannelID:   ch.ChannelID,
				ChannelType: ch.ChannelType,
				CallHome:    ch.CallHome.Enabled(),
				Controller:  ch.SourceNode(),
				Device:      ch.DestNode(),
				Alarms:      ch.ChannelAlarms,
				Sessions:    len(ch.Session),
				BytesIn:     ch.BytesIn,
				BytesOut:    ch.BytesOut,
			}
			for _, s := range ch.Session {
				summary.SessionAlarms += s.SessionAlarms
			}

			device := ts.locate(summary.Device)
			summary.Country = device.Country
			summary.City = device.City
			summary.Lat = device.Lat
			summary.Lon = device.Lon

			if device.Known() {
				if ctrl := ts.locate(summary.Controller); ctrl.Known() {
					summary.DistanceKm = math.Round(haversineDistance(ctrl.Lat, ctrl.Lon, device.Lat, device.Lon))
				}
			}

			summaries = append(summaries, summary)
		}
	}
	return summaries
}

// Regions groups channels by the country of their device, largest first
func (ts *TopologyService) Regions(resp *models.TopologyResponse) []models.RegionalCluster {
	byRegion := make(map[string]*models.RegionalCluster)
	order := make([]string, 0)

	for _, s := range ts.Summaries(resp) {
		region := s.Country
		if region == "" {
			region = utils.Unknown
		}
		cluster, ok := byRegion[region]
		if !ok {
			cluster = &models.RegionalCluster{Region: region, ChannelIDs: make([]string, 0)}
			byRegion[region] = cluster
			order = append(order, region)
		}
		cluster.ChannelCount++
		cluster.ChannelIDs = append(cluster.ChannelIDs, s.ChannelID)
		cluster.Alarms += s.Alarms + s.SessionAlarms
	}

	clusters := make([]models.RegionalCluster, 0, len(order))
	for _, region := range order {
		clusters = append(clusters, *byRegion[region])
	}
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].ChannelCount > clusters[j].ChannelCount
	})
	return clusters
}

// haversineDistance calculates distance between two lat/lon points in km
func haversineDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371.0 // km

	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLon := (lon2 - lon1) * math.Pi / 180.0

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180.0)*math.Cos(lat2*math.Pi/180.0)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadius * c
}
