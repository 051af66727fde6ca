package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClusterKeyPrecedence(t *testing.T) {
	zone := "north"

	withZone := ServiceSite{ID: "s1", ZoneID: &zone, ZIP: "1000", City: "Brussels"}
	assert.Equal(t, "ZONE:north", withZone.ClusterKey())

	withZIP := ServiceSite{ID: "s2", ZIP: "1000", City: "Brussels"}
	assert.Equal(t, "100", withZIP.ClusterKey())

	withCity := ServiceSite{ID: "s3", ZIP: "1", City: "Brussels"}
	assert.Equal(t, "brussels", withCity.ClusterKey())

	withRegion := ServiceSite{ID: "s4", Region: "Flanders"}
	assert.Equal(t, "flanders", withRegion.ClusterKey())
}

func TestHasCoordinates(t *testing.T) {
	assert.True(t, ServiceSite{Latitude: 50.85, Longitude: 4.35}.HasCoordinates())
	assert.False(t, ServiceSite{}.HasCoordinates())
}
