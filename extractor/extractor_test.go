package extractor_test

import (
	"testing"

	"github.com/bcajales/scraper-service/extractor"
	"github.com/bcajales/scraper-service/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBase      = "https://www.mercadopublico.cl"
	testSourceURL = "https://host/Ficha?idlicitacion=4321-5-LE24"
	testDownload  = "https://www.mercadopublico.cl/Procurement/Modules/RFB/DownloadDoc.aspx?idlic=4321-5-LE24&idDoc="
)

// primaryHTML has three downloadable rows and a link to the attachments page.
const primaryHTML = `<!DOCTYPE html>
<html><body>
<table id="ctl00_grvAnexos">
  <thead><tr><th>Nombre</th><th>Tipo</th><th></th></tr></thead>
  <tbody>
    <tr><td> Bases administrativas </td><td>PDF</td>
        <td><input type="image" src="dl.png" onclick="fn_descargar_anexo_v2('101'); return false;"></td></tr>
    <tr><td>Anexo técnico</td><td>DOCX</td>
        <td><input type="image" src="dl.png" onclick="fn_descargar_anexo_v2(&quot;102&quot;)"></td></tr>
    <tr><td>Formulario económico</td><td>XLSX</td>
        <td><input type="image" src="dl.png" onclick="fn_descargar_anexo_v2 ( 103 , 'x')"></td></tr>
  </tbody>
</table>
<a href="../Attachment/ViewAttachment.aspx?enc=abc">Ver adjuntos</a>
</body></html>`

// degenerateHTML has rows that must all be skipped except the last one.
const degenerateHTML = `<html><body>
<table id="grvAnexos">
  <tbody>
    <tr><td>   </td><td><input type="image" onclick="fn_descargar_anexo_v2('1')"></td></tr>
    <tr><td>Sin botón</td><td>nada</td></tr>
    <tr><td>Otro handler</td><td><input type="image" onclick="fn_ver_ficha('2')"></td></tr>
    <tr><td>Sin número</td><td><input type="image" onclick="fn_descargar_anexo_v2('abc')"></td></tr>
    <tr><td>Sin onclick</td><td><input type="image" src="x.png"></td></tr>
    <tr><td>Válido</td><td><input type="image" onclick="fn_descargar_anexo_v2('7')"></td></tr>
  </tbody>
</table>
</body></html>`

const duplicatePrimaryHTML = `<html><body>
<table id="grvAnexos"><tbody>
  <tr><td>Primero</td><td><input type="image" onclick="fn_descargar_anexo_v2('5')"></td></tr>
  <tr><td>Repetido</td><td><input type="image" onclick="fn_descargar_anexo_v2('5')"></td></tr>
</tbody></table>
</body></html>`

// secondaryHTML repeats document 101 from the primary grid and adds two files.
const secondaryHTML = `<html><body>
<table id="DWNL_grdArchivos">
  <tbody>
    <tr><td>Copia de bases</td><td>1 MB</td>
        <td><a href="https://www.mercadopublico.cl/Procurement/Modules/RFB/DownloadDoc.aspx?idlic=4321-5-LE24&amp;idDoc=101">Descargar</a></td></tr>
    <tr><td>Aclaraciones</td><td>200 KB</td><td><a href="Download.aspx?id=9001">Descargar</a></td></tr>
    <tr><td>Sin enlace</td><td>10 KB</td><td>-</td></tr>
    <tr><td></td><td>10 KB</td><td><a href="Download.aspx?id=9002">Descargar</a></td></tr>
    <tr><td>Anexo firmado</td><td>5 MB</td><td><a href="/Procurement/Download.aspx?id=9003">Descargar</a></td></tr>
  </tbody>
</table>
</body></html>`

const emptyHTML = `<html><head><title>Ficha</title></head><body><p>Sin adjuntos</p></body></html>`

func TestPrimary_RowsInOrder(t *testing.T) {
	t.Parallel()

	ext := extractor.New(testBase)
	records, secondary, err := ext.Primary(primaryHTML, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)

	assert.Equal(t, []models.Attachment{
		{Name: "Bases administrativas", DownloadURL: testDownload + "101"},
		{Name: "Anexo técnico", DownloadURL: testDownload + "102"},
		{Name: "Formulario económico", DownloadURL: testDownload + "103"},
	}, records)
	assert.Equal(t, "https://host/Attachment/ViewAttachment.aspx?enc=abc", secondary)
}

func TestPrimary_DownloadURLConstruction(t *testing.T) {
	t.Parallel()

	markup := `<table id="x_grvAnexos_y"><tbody>
		<tr><td>Doc</td><td><input type="image" onclick="fn_descargar_anexo_v2('999')"></td></tr>
	</tbody></table>`

	records, _, err := extractor.New(testBase).Primary(markup, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t,
		"https://www.mercadopublico.cl/Procurement/Modules/RFB/DownloadDoc.aspx?idlic=4321-5-LE24&idDoc=999",
		records[0].DownloadURL)
}

func TestPrimary_ConfigurableBase(t *testing.T) {
	t.Parallel()

	markup := `<table id="grvAnexos"><tbody>
		<tr><td>Doc</td><td><input type="image" onclick="fn_descargar_anexo_v2(12)"></td></tr>
	</tbody></table>`

	records, _, err := extractor.New("https://staging.example.cl/").Primary(markup, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t,
		"https://staging.example.cl/Procurement/Modules/RFB/DownloadDoc.aspx?idlic=4321-5-LE24&idDoc=12",
		records[0].DownloadURL)
}

func TestPrimary_SkipsDegenerateRows(t *testing.T) {
	t.Parallel()

	records, secondary, err := extractor.New(testBase).Primary(degenerateHTML, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)

	assert.Equal(t, []models.Attachment{{Name: "Válido", DownloadURL: testDownload + "7"}}, records)
	assert.Empty(t, secondary)
}

func TestPrimary_DeduplicatesWithinTable(t *testing.T) {
	t.Parallel()

	records, _, err := extractor.New(testBase).Primary(duplicatePrimaryHTML, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "Primero", records[0].Name)
}

func TestPrimary_MissingBidID(t *testing.T) {
	t.Parallel()

	markup := `<table id="grvAnexos"><tbody>
		<tr><td>Doc</td><td><input type="image" onclick="fn_descargar_anexo_v2('3')"></td></tr>
	</tbody></table>`

	records, _, err := extractor.New(testBase).Primary(markup, "https://host/Ficha", extractor.NewSeen())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t,
		"https://www.mercadopublico.cl/Procurement/Modules/RFB/DownloadDoc.aspx?idlic=&idDoc=3",
		records[0].DownloadURL)
}

func TestPrimary_AbsentTableAndLink(t *testing.T) {
	t.Parallel()

	records, secondary, err := extractor.New(testBase).Primary(emptyHTML, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)

	assert.NotNil(t, records)
	assert.Empty(t, records)
	assert.Empty(t, secondary)
}

func TestPrimary_InvalidSourceURL(t *testing.T) {
	t.Parallel()

	_, _, err := extractor.New(testBase).Primary(primaryHTML, "://no-scheme", extractor.NewSeen())
	require.Error(t, err)
	assert.False(t, models.IsRenderFailure(err))
}

func TestPrimary_Idempotent(t *testing.T) {
	t.Parallel()

	ext := extractor.New(testBase)
	first, firstLink, err := ext.Primary(primaryHTML, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)
	second, secondLink, err := ext.Primary(primaryHTML, testSourceURL, extractor.NewSeen())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, firstLink, secondLink)
}

func TestSecondary_ResolvesAgainstPageURL(t *testing.T) {
	t.Parallel()

	pageURL := "https://www.mercadopublico.cl/Procurement/Modules/Attachment/ViewAttachment.aspx?enc=abc"
	records, err := extractor.New(testBase).Secondary(secondaryHTML, pageURL, extractor.NewSeen())
	require.NoError(t, err)

	assert.Equal(t, []models.Attachment{
		{Name: "Copia de bases", DownloadURL: testDownload + "101"},
		{Name: "Aclaraciones", DownloadURL: "https://www.mercadopublico.cl/Procurement/Modules/Attachment/Download.aspx?id=9001"},
		{Name: "Anexo firmado", DownloadURL: "https://www.mercadopublico.cl/Procurement/Download.aspx?id=9003"},
	}, records)
}

func TestSecondary_AbsentTable(t *testing.T) {
	t.Parallel()

	records, err := extractor.New(testBase).Secondary(emptyHTML, "https://host/ViewAttachment.aspx", extractor.NewSeen())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestSharedSeen_PrimaryWins(t *testing.T) {
	t.Parallel()

	ext := extractor.New(testBase)
	seen := extractor.NewSeen()

	primary, secondaryURL, err := ext.Primary(primaryHTML, testSourceURL, seen)
	require.NoError(t, err)
	require.NotEmpty(t, secondaryURL)

	secondary, err := ext.Secondary(secondaryHTML, secondaryURL, seen)
	require.NoError(t, err)

	merged := append(primary, secondary...)
	count := 0
	for _, r := range merged {
		if r.DownloadURL == testDownload+"101" {
			count++
			assert.Equal(t, "Bases administrativas", r.Name)
		}
	}
	assert.Equal(t, 1, count)
	assert.Len(t, merged, 5)
}
