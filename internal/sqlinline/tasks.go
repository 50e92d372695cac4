package sqlinline

const QInsertTask = `--sql 556233bc-531c-4ad7-ba62-bb6e70ead62a
insert into generation_tasks(
  id,
  user_id,
  task_type,
  status,
  prompt,
  original_image_url,
  batch_id,
  parent_character_id,
  created_at,
  updated_at
) values (
  $1::uuid,
  nullif($2::text, ''),
  $3::text,
  'pending',
  $4::text,
  nullif($5::text, ''),
  nullif($6::text, ''),
  nullif($7::text, ''),
  now(),
  now()
)
returning id::text, user_id, task_type, status, prompt, original_image_url, result_image_url, result_data, error_message, batch_id, parent_character_id, created_at, updated_at;
`

const QUpdateTaskByID = `--sql 359131b5-4725-47b9-81f0-932ca85efb28
update generation_tasks
set status = $2::text,
    result_image_url = $3::text,
    result_data = $4::jsonb,
    error_message = $5::text,
    updated_at = now()
where id = $1::uuid
  and ($6::text = '' or status = $6::text)
returning id::text, user_id, task_type, status, prompt, original_image_url, result_image_url, result_data, error_message, batch_id, parent_character_id, created_at, updated_at;
`

const QSelectTaskByID = `--sql 3da941d7-d329-4989-aeca-9d5baf49ac57
select id::text, user_id, task_type, status, prompt, original_image_url, result_image_url, result_data, error_message, batch_id, parent_character_id, created_at, updated_at
from generation_tasks
where id = $1::uuid
limit 1;
`

const QListTasksByBatch = `--sql 6e4c03a9-a023-44fb-a6ad-fb0308d64f58
select id::text, user_id, task_type, status, prompt, original_image_url, result_image_url, result_data, error_message, batch_id, parent_character_id, created_at, updated_at
from generation_tasks
where batch_id = $1::text
order by seq asc;
`

const QListTasksByParentCharacter = `--sql 370f8a26-40db-4307-aad4-218865fef10e
select id::text, user_id, task_type, status, prompt, original_image_url, result_image_url, result_data, error_message, batch_id, parent_character_id, created_at, updated_at
from generation_tasks
where parent_character_id = $1::text
order by seq asc;
`

const QListTasksByUser = `--sql e0601dd3-9d39-4a20-a26c-2812de7b29f3
select id::text, user_id, task_type, status, prompt, original_image_url, result_image_url, result_data, error_message, batch_id, parent_character_id, created_at, updated_at
from generation_tasks
where user_id = $1::text
order by seq asc;
`
