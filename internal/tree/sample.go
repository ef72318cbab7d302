package tree

import "github.com/detective/core/internal/models"

func leaf(id, name string, value, change float64, cat models.Category, status models.Status) *models.NodeSpec {
	return &models.NodeSpec{ID: id, Name: name, Value: value, Change: change, Category: cat, Status: status}
}

// SampleHierarchy is the built-in hierarchy used when no hierarchy file is
// configured. Statuses are assigned per node and deliberately disagree with
// the sign of change in places (social media, europe, devices).
func SampleHierarchy() *models.HierarchySource {
	northAmerica := leaf("north_america", "North America", 35000000, 2.5, models.CategoryGeography, models.StatusHealthy)
	northAmerica.Children = []*models.NodeSpec{
		leaf("usa", "United States", 28000000, 2.8, models.CategoryGeography, models.StatusHealthy),
		leaf("canada", "Canada", 7000000, 1.5, models.CategoryGeography, models.StatusHealthy),
	}

	traffic := leaf("traffic", "Traffic Sources", 85000000, 3.2, models.CategoryTraffic, models.StatusHealthy)
	traffic.Children = []*models.NodeSpec{
		leaf("organic", "Organic Search", 45000000, 4.1, models.CategoryTraffic, models.StatusHealthy),
		leaf("direct", "Direct Traffic", 25000000, 2.8, models.CategoryTraffic, models.StatusHealthy),
		leaf("social", "Social Media", 15000000, -1.2, models.CategoryTraffic, models.StatusWarning),
	}

	geography := leaf("geography", "Geographic Distribution", 57587262, 1.8, models.CategoryGeography, models.StatusHealthy)
	geography.Children = []*models.NodeSpec{
		northAmerica,
		leaf("europe", "Europe", 15000000, 0.8, models.CategoryGeography, models.StatusWarning),
		leaf("asia", "Asia Pacific", 7587262, -2.1, models.CategoryGeography, models.StatusCritical),
	}

	devices := leaf("devices", "Device Types", 142587262, 0.5, models.CategoryDevice, models.StatusWarning)
	devices.Children = []*models.NodeSpec{
		leaf("mobile", "Mobile Devices", 95000000, 5.2, models.CategoryDevice, models.StatusHealthy),
		leaf("desktop", "Desktop", 42000000, -3.8, models.CategoryDevice, models.StatusCritical),
		leaf("tablet", "Tablet", 5587262, -1.5, models.CategoryDevice, models.StatusWarning),
	}

	root := leaf("root", "Detective System", 142587262, 2.5, models.CategorySystem, models.StatusHealthy)
	root.Children = []*models.NodeSpec{traffic, geography, devices}

	return &models.HierarchySource{Root: root}
}
