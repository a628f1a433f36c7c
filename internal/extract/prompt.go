package extract

// candidateCategories are the line items of a Japanese political fund report.
var candidateCategories = []string{
	"個人からの寄附",
	"政治団体からの寄附",
	"法人その他の団体からの寄附",
	"党費・会費",
	"機関紙誌の発行事業費",
	"宣伝事業費",
	"政治資金パーティ開催事業費",
	"その他の事業費",
	"組織活動費",
	"選挙関係費",
	"調査研究費",
	"寄附・交付金",
	"人件費",
	"光熱水費",
	"備品・消耗品費",
	"事務所費",
	"借入金",
	"前年からの繰越額",
	"翌年への繰越額",
	"その他の経費",
}

const pagePromptHeader = `この画像は日本の政治資金収支報告書の1ページです。
読み取れる内容をすべて抽出し、次の形式のJSONオブジェクトだけを出力してください。
読み取れない箇所は推測せずに省略してください。

{
  "year": 2025,
  "categories": [
    {"id": "c1", "name": "個人からの寄附", "parent": "c0", "direction": "income"},
    {"id": "c0", "name": "総収入", "parent": null, "direction": "income"}
  ],
  "transactions": [
    {"id": "t1", "category_id": "c1", "name": "田中太郎", "date": "R6.6.29", "value": 10000}
  ]
}

categories:
- id はページ内で一意な任意の文字列
- parent は親カテゴリの id。最上位は null
- direction は "income" または "expense"
- name は次の候補から選ぶ。該当しない場合は「その他 (読み取った名称)」とする
`

const pagePromptFooter = `
transactions:
- category_id は categories の id のいずれか
- 年月日欄の「6 9 30」のような区切りは令和6年9月30日なので "R6.9.30" と書く
- name は画像の記載どおり
- value は金額の数値

コードブロックや説明文は付けず、JSONオブジェクトのみを返してください。`

// PagePrompt is the instruction sent with every page image.
func PagePrompt() string {
	s := pagePromptHeader
	for _, c := range candidateCategories {
		s += "  - " + c + "\n"
	}
	return s + pagePromptFooter
}
