package proximity

import "github.com/samirrijal/roadwatch/internal/core/domain"

func place(name string, lat, lon float64) domain.Place {
	return domain.Place{Name: name, Location: domain.GeoPoint{Lat: lat, Lon: lon}}
}

// IndianCities is the default gazetteer for NearestLabel.
var IndianCities = []domain.Place{
	place("Delhi", 28.6139, 77.2090),
	place("Mumbai", 19.0760, 72.8777),
	place("Bangalore", 12.9716, 77.5946),
	place("Chennai", 13.0827, 80.2707),
	place("Kolkata", 22.5726, 88.3639),
	place("Hyderabad", 17.3850, 78.4867),
	place("Pune", 18.5204, 73.8567),
	place("Ahmedabad", 23.0225, 72.5714),
	place("Jaipur", 26.9124, 75.7873),
	place("Lucknow", 26.8467, 80.9462),
	place("Surat", 21.1702, 72.8311),
	place("Kanpur", 26.4499, 80.3319),
	place("Nagpur", 21.1458, 79.0882),
	place("Patna", 25.5941, 85.1376),
	place("Indore", 22.7196, 75.8577),
	place("Bhopal", 23.2599, 77.4126),
	place("Ludhiana", 30.9010, 75.8573),
	place("Agra", 27.1767, 78.0081),
	place("Nashik", 19.9975, 73.7898),
	place("Faridabad", 28.4089, 77.3178),
	place("Meerut", 28.9845, 77.7064),
	place("Rajkot", 22.3039, 70.8022),
	place("Varanasi", 25.3176, 82.9739),
	place("Srinagar", 34.0837, 74.7973),
	place("Amritsar", 31.6340, 74.8723),
	place("Ranchi", 23.3441, 85.3096),
	place("Raipur", 21.2514, 81.6296),
	place("Jodhpur", 26.2389, 73.0243),
	place("Kochi", 9.9312, 76.2673),
	place("Guwahati", 26.1445, 91.7362),
	place("Chandigarh", 30.7333, 76.7794),
	place("Thiruvananthapuram", 8.5241, 76.9366),
	place("Bhubaneswar", 20.2961, 85.8245),
	place("Dehradun", 30.3165, 78.0322),
	place("Gangtok", 27.3389, 88.6065),
	place("Shimla", 31.1048, 77.1734),
	place("Panaji", 15.4909, 73.8278),
	place("Port Blair", 11.6234, 92.7265),
}
