package config

// PinellasDefaults returns the built-in Pinellas County, FL configuration.
// Any field can be overridden through the counties.pinellas config keys.
func PinellasDefaults() CountyConfig {
	return CountyConfig{
		ParcelLayer:       "https://egis.pinellas.gov/gis/rest/services/Accela/AccelaAddressParcel/MapServer/1",
		ParcelIDField:     "PGIS.PGIS.Parcels.PARCELID",
		IDSegments:        []int{2, 2, 2, 5, 3, 4},
		IDDashed:          true,
		BoundaryLayer:     "https://egis.pinellas.gov/gis/rest/services/OpenData/Jurisdictions/MapServer/0",
		BoundaryNameField: "NAME",
		Unincorporated: LayerPair{
			Zoning: "https://egis.pinellas.gov/gis/rest/services/OpenData/Zoning/MapServer/0",
			FLU:    "https://egis.pinellas.gov/gis/rest/services/OpenData/FutureLandUse/MapServer/0",
		},
		CityOverrides: map[string]LayerPair{
			"st. petersburg": {
				Zoning: "https://egis.stpete.org/arcgis/rest/services/Zoning/MapServer/0",
				FLU:    "https://egis.stpete.org/arcgis/rest/services/FutureLandUse/MapServer/0",
			},
		},
		CityApps: map[string]string{
			"clearwater": "https://gis.myclearwater.com/portal/apps/webappviewer/index.html?id=0123456789abcdef0123456789abcdef",
			"largo":      "https://maps.largo.com/portal/apps/webappviewer/index.html?id=fedcba9876543210fedcba9876543210",
		},
		CityNames: map[string]string{
			"SP":  "St. Petersburg",
			"CW":  "Clearwater",
			"LG":  "Largo",
			"PH":  "Pinellas Park",
			"DN":  "Dunedin",
			"TS":  "Tarpon Springs",
			"SM":  "Seminole",
			"SF":  "Safety Harbor",
			"OL":  "Oldsmar",
			"GU":  "Gulfport",
			"PIN": "Pinellas Park",
		},
		AppraiserURL:       "https://www.pcpao.gov/property-details",
		RateLimitPerSecond: 10,
	}
}
