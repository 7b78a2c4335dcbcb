package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Guliveer/devtrack-agent/internal/models"
)

func TestParseTabbedPackages(t *testing.T) {
	out := "zlib1g\t1:1.2.13\tMark Brown <broonie@debian.org>\t\n" +
		"\n" +
		"bash\t5.2.15-2\tMatthias Klose <doko@debian.org>\t\n" +
		"openssl\t3.0.11-1.el9\t(none)\tMon 02 Oct 2023\n" +
		"\tmissing-name\t\t\n"

	sw := parseTabbedPackages(out)
	require.Len(t, sw, 3)

	assert.Equal(t, models.Software{
		Name: "bash", Version: "5.2.15-2", Publisher: "Matthias Klose", InstallDate: models.Unknown,
	}, sw[0])
	assert.Equal(t, "openssl", sw[1].Name)
	assert.Equal(t, models.Unknown, sw[1].Publisher)
	assert.Equal(t, "Mon 02 Oct 2023", sw[1].InstallDate)
	assert.Equal(t, "zlib1g", sw[2].Name)
}

func TestParseTabbedPackagesEmpty(t *testing.T) {
	sw := parseTabbedPackages("")
	assert.NotNil(t, sw)
	assert.Empty(t, sw)
}

func TestCleanValue(t *testing.T) {
	assert.Equal(t, "", cleanValue("To Be Filled By O.E.M.\n"))
	assert.Equal(t, "", cleanValue("  Default string "))
	assert.Equal(t, "LENOVO", cleanValue("LENOVO\n"))
}

func TestParseKeyValueLines(t *testing.T) {
	fields := parseKeyValueLines("Manufacturer=Dell Inc.\r\nModel=XPS 13 9310\r\nSerial=ABC123\r\n\r\n")
	assert.Equal(t, "Dell Inc.", fields["manufacturer"])
	assert.Equal(t, "XPS 13 9310", fields["model"])
	assert.Equal(t, "ABC123", fields["serial"])
}

func TestParseProfilerHardware(t *testing.T) {
	data := []byte(`{"SPHardwareDataType":[{"machine_name":"MacBook Pro","machine_model":"Mac14,7","serial_number":"C02XYZ"}]}`)

	hw, err := parseProfilerHardware(data)
	require.NoError(t, err)
	assert.Equal(t, Hardware{Manufacturer: "Apple Inc.", Model: "MacBook Pro Mac14,7", Serial: "C02XYZ"}, hw)
}

func TestParseProfilerHardwareInvalid(t *testing.T) {
	_, err := parseProfilerHardware([]byte("not json"))
	assert.Error(t, err)
}

func TestParseProfilerApplications(t *testing.T) {
	data := []byte(`{"SPApplicationsDataType":[
		{"_name":"Xcode","version":"15.0","obtained_from":"mac_app_store","lastModified":"2023-09-18T10:00:00Z"},
		{"_name":"Firefox","version":"118.0","obtained_from":"identified_developer","signed_by":["Developer ID Application: Mozilla Corporation (43AQ936H96)","Apple Root CA"]},
		{"_name":"","version":"1.0"}
	]}`)

	sw, err := parseProfilerApplications(data)
	require.NoError(t, err)
	require.Len(t, sw, 2)
	assert.Equal(t, "Firefox", sw[0].Name)
	assert.Equal(t, "Mozilla Corporation (43AQ936H96)", sw[0].Publisher)
	assert.Equal(t, models.Unknown, sw[0].InstallDate)
	assert.Equal(t, "Xcode", sw[1].Name)
	assert.Equal(t, "mac_app_store", sw[1].Publisher)
}
