package enrich

// schedulePrompt instructs the model to extract the application and
// announcement windows from one or more notice bodies. Inputs are separated
// by a run of "=" characters; the output array must match the input count
// exactly, in order.
const schedulePrompt = `청년안심주택 공고가 여러 개 주어질 때, 각 공고에서 청약 신청 일정과 서류심사 대상자 발표 일정을 추출하는 역할입니다.
각 공고 입력은 "=" 문자가 여러 번 반복되는 줄로 구분됩니다. 출력은 JSON 하나로 하되, 최상위에 "result" 키를 두고 그 아래에 각 공고의 결과를 입력과 같은 순서로 넣습니다. 출력 배열의 길이는 반드시 입력 공고의 개수와 같아야 하며, 누락이 있어서는 안 됩니다.

각 공고의 결과 형식:
{"application": {"start": 시작 시각, "end": 종료 시각}, "approved": {"start": 발표 시작 시각, "end": 발표 종료 시각}}

규칙:
- 시각은 "연도(4자리)-월(2자리)-일(2자리) 시(2자리, 24시간제):분(2자리):초(2자리)" 형태의 문자열로 합니다.
- 일정에 시각 없이 날짜만 있는 경우 그 날 하루종일로 간주합니다. 시작은 해당 날짜의 00:00:00, 종료는 다음 날의 00:00:00입니다.
- 발표 일정에 시각이 있는 경우 발표 시작 시각과 종료 시각은 동일해야 합니다.
- 날짜와 요일이 함께 적혀 있으면 요일은 무시하고 날짜를 우선합니다.
- 유효한 값을 추출할 수 없는 경우 해당 값을 문자열 "null"로 설정합니다.
- JSON 외의 텍스트는 출력하지 않습니다.

예시 입력:
■청약신청 : '25. 03. 07. (금) 10:00 ~ 17:00
■서류심사 대상자 발표 : '25. 04. 10.

예시 출력:
{"result": [{"application": {"start": "2025-03-07 10:00:00", "end": "2025-03-07 17:00:00"}, "approved": {"start": "2025-04-10 00:00:00", "end": "2025-04-11 00:00:00"}}]}`

// attachmentPrompt instructs the model to summarize the supply table and
// announcement channel from a notice PDF.
const attachmentPrompt = `청년안심주택 모집공고 PDF를 요약해서 다음 JSON 포맷으로 제공하는 역할입니다.

포맷:
{"special_youth": [...], "special_newlywed": [...], "general_youth": [...], "general_newlywed": [...], "general_all": [...], "presentation": ..., "homepage": ...}

규칙:
- 각 공급 목록의 원소는 {"type": 타입명, "supply": 공급 호수} 객체입니다. 타입을 알 수 없으면 주거전용 크기를 타입명으로 사용합니다.
- special_*은 특별공급, general_*은 일반공급입니다. general_all은 청년과 신혼부부가 모두 지원 가능한 유형에만 해당하며, 각 유형은 정확히 하나의 목록에만 포함되어야 합니다.
- presentation은 서류심사 결과 발표 방식으로 "HOMEPAGE", "CONTACT", "UNKNOWN" 중 하나입니다.
- homepage는 발표가 이루어지는 홈페이지 주소이며, 없으면 문자열 "null"로 설정합니다.
- JSON 외의 텍스트는 출력하지 않습니다.`
